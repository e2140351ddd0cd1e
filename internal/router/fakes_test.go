package router

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grx1242064203-bit/fund-calendar/internal/audit"
	"github.com/grx1242064203-bit/fund-calendar/internal/model"
	"github.com/grx1242064203-bit/fund-calendar/internal/repository"
	"github.com/grx1242064203-bit/fund-calendar/internal/utils"
)

type memUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]*model.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[uint64]*model.User{}} }

func (m *memUsers) Create(_ context.Context, u *model.User, password string, cost int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.IsActive && existing.Phone == u.Phone {
			return 0, repository.ErrConflict
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	m.nextID++
	u.ID = m.nextID
	u.PasswordHash = hash
	u.PasswordSalt = utils.SaltOf(hash)
	u.IsActive = true
	u.CreatedAt = time.Now()
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	cp := *u
	m.byID[u.ID] = &cp
	return u.ID, nil
}

func (m *memUsers) GetByPhone(_ context.Context, phone string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.IsActive && u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.IsActive {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) List(context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memUsers) TouchLastLogin(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		now := time.Now()
		u.LastLogin = &now
	}
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id uint64, password string, cost int) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.IsActive {
		return nil, repository.ErrNotFound
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	u.PasswordSalt = utils.SaltOf(hash)
	cp := *u
	return &cp, nil
}

type memProducts struct {
	mu        sync.Mutex
	nextID    uint64
	products  map[uint64]*model.Product
	openDates map[uint64][]model.OpenDateRule
	periods   map[uint64][]model.ReservationPeriodRule
}

func newMemProducts() *memProducts {
	return &memProducts{
		products:  map[uint64]*model.Product{},
		openDates: map[uint64][]model.OpenDateRule{},
		periods:   map[uint64][]model.ReservationPeriodRule{},
	}
}

func (m *memProducts) List(_ context.Context, q model.ProductQuery) ([]model.Product, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Product
	for _, p := range m.products {
		if !p.IsActive {
			continue
		}
		if q.Search != "" && !strings.Contains(p.ProductCode, q.Search) && !strings.Contains(p.ProductName, q.Search) {
			continue
		}
		cp := *p
		cp.OpenDatesCount = len(m.openDates[p.ID])
		all = append(all, cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	start := q.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return append([]model.Product{}, all[start:end]...), total, nil
}

func (m *memProducts) Get(_ context.Context, id uint64) (*model.ProductDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || !p.IsActive {
		return nil, repository.ErrNotFound
	}
	return &model.ProductDetail{
		Product:            *p,
		OpenDates:          append([]model.OpenDateRule{}, m.openDates[id]...),
		ReservationPeriods: append([]model.ReservationPeriodRule{}, m.periods[id]...),
	}, nil
}

func (m *memProducts) Upsert(_ context.Context, in model.ProductInput, actorID uint64) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var id uint64
	for _, p := range m.products {
		if p.IsActive && p.ProductCode == in.ProductCode {
			id = p.ID
		}
	}
	created := id == 0
	if created {
		m.nextID++
		id = m.nextID
		by := actorID
		m.products[id] = &model.Product{ID: id, ProductCode: in.ProductCode, IsActive: true, CreatedBy: &by, CreatedAt: time.Now()}
	}
	p := m.products[id]
	p.ProductName = in.ProductName
	p.Description = in.Description
	p.UpdatedAt = time.Now()

	ods := make([]model.OpenDateRule, 0, len(in.OpenDates))
	for _, od := range in.OpenDates {
		od.ProductID = id
		ods = append(ods, od)
	}
	ps := make([]model.ReservationPeriodRule, 0, len(in.ReservationPeriods))
	for _, rp := range in.ReservationPeriods {
		rp.ProductID = id
		ps = append(ps, rp)
	}
	m.openDates[id] = ods
	m.periods[id] = ps
	return id, created, nil
}

func (m *memProducts) SoftDelete(_ context.Context, id uint64) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || !p.IsActive {
		return nil, repository.ErrNotFound
	}
	p.IsActive = false
	cp := *p
	return &cp, nil
}

func (m *memProducts) CalendarRules(_ context.Context, from, to model.Date) ([]model.CalendarRow, []model.ReservationPeriodRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	within := func(d model.Date) bool { return !d.Before(from.Time) && !d.After(to.Time) }

	var rows []model.CalendarRow
	var periods []model.ReservationPeriodRule
	for id, p := range m.products {
		if !p.IsActive {
			continue
		}
		touches := false
		for _, od := range m.openDates[id] {
			touches = touches || within(od.OpenDate)
		}
		for _, rp := range m.periods[id] {
			touches = touches || within(rp.PeriodStartDate)
		}
		if !touches {
			continue
		}
		for _, od := range m.openDates[id] {
			rows = append(rows, model.CalendarRow{
				ProductID:       id,
				ProductCode:     p.ProductCode,
				ProductName:     p.ProductName,
				OpenType:        od.OpenType,
				OpenDate:        od.OpenDate,
				PeriodStartDays: od.PeriodStartDays,
				PeriodEndDays:   od.PeriodEndDays,
			})
		}
		periods = append(periods, m.periods[id]...)
	}
	return rows, periods, nil
}

type memHolidays struct {
	mu     sync.Mutex
	nextID uint64
	rows   []*model.Holiday
}

func (m *memHolidays) between(from, to model.Date) []model.Holiday {
	out := []model.Holiday{}
	for _, h := range m.rows {
		if h.IsActive && !h.HolidayDate.Before(from.Time) && !h.HolidayDate.After(to.Time) {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HolidayDate.Before(out[j].HolidayDate.Time) })
	return out
}

func (m *memHolidays) ListByYear(_ context.Context, year int) ([]model.Holiday, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.between(model.NewDate(year, time.January, 1), model.NewDate(year, time.December, 31)), nil
}

func (m *memHolidays) ListByMonth(_ context.Context, year int, month time.Month) ([]model.Holiday, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := model.NewDate(year, month, 1)
	return m.between(from, model.Date{Time: from.AddDate(0, 1, -1)}), nil
}

func (m *memHolidays) createLocked(h *model.Holiday) error {
	for _, existing := range m.rows {
		if existing.IsActive && existing.HolidayDate.Equal(h.HolidayDate.Time) {
			return repository.ErrConflict
		}
	}
	m.nextID++
	h.ID = m.nextID
	h.IsActive = true
	cp := *h
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memHolidays) Create(_ context.Context, h *model.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(h)
}

func (m *memHolidays) CreateMissing(_ context.Context, hs []model.Holiday) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range hs {
		if m.createLocked(&hs[i]) == nil {
			n++
		}
	}
	return n, nil
}

func (m *memHolidays) SoftDelete(_ context.Context, id uint64) (*model.Holiday, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.rows {
		if h.ID == id && h.IsActive {
			h.IsActive = false
			cp := *h
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memLogs struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memLogs) Record(e audit.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *memLogs) ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Operation)
	}
	return out
}

func (m *memLogs) List(_ context.Context, page, limit int) ([]model.OperationLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.OperationLog{}
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		l := model.OperationLog{ID: uint64(i + 1), OperationType: e.Operation, IPAddress: e.IPAddress}
		if e.ActorID != 0 {
			id := e.ActorID
			l.UserID = &id
		}
		out = append(out, l)
	}
	total := int64(len(out))
	start := (page - 1) * limit
	if start > len(out) {
		start = len(out)
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}
