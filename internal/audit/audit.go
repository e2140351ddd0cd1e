// Package audit records user operations without blocking the request that
// triggered them. Entries are written in the background; a failed write is
// logged and counted, never reported to the caller.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/grx1242064203-bit/fund-calendar/internal/metrics"
	"github.com/grx1242064203-bit/fund-calendar/internal/model"
)

// Operation types written to user_operation_logs.
const (
	OpRegister        = "user.register"
	OpLogin           = "user.login"
	OpResetPassword   = "user.reset_password"
	OpProductUpsert   = "product.upsert"
	OpProductDelete   = "product.delete"
	OpHolidayCreate   = "holiday.create"
	OpHolidayDelete   = "holiday.delete"
	OpHolidayWeekends = "holiday.generate_weekends"
)

// Sink persists a single operation log.
type Sink interface {
	Write(ctx context.Context, l model.OperationLog) error
}

// Entry describes one operation. ActorID 0 means no authenticated actor.
// Detail is stored as JSON unless it is already a string.
type Entry struct {
	ActorID   uint64
	Operation string
	Detail    any
	IPAddress string
	UserAgent string
}

// Logger hands entries to a Sink on background goroutines.
type Logger struct {
	sink     Sink
	sinkName string
	timeout  time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New returns a Logger writing to sink. sinkName labels metrics and logs.
func New(sink Sink, sinkName string, timeout time.Duration, log zerolog.Logger) *Logger {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Logger{
		sink:     sink,
		sinkName: sinkName,
		timeout:  timeout,
		log:      log.With().Str("component", "audit").Str("sink", sinkName).Logger(),
	}
}

// Record schedules e for writing and returns immediately.
func (l *Logger) Record(e Entry) {
	rec := toRecord(e)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.log.Warn().Str("operation", e.Operation).Msg("audit logger closed, entry dropped")
		metrics.IncAuditWrite(l.sinkName, "dropped")
		return
	}
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()
		if err := l.sink.Write(ctx, rec); err != nil {
			l.log.Error().Err(err).Str("operation", rec.OperationType).Msg("audit write failed")
			metrics.IncAuditWrite(l.sinkName, "error")
			return
		}
		metrics.IncAuditWrite(l.sinkName, "ok")
	}()
}

// Close stops accepting entries and waits for pending writes or ctx.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toRecord(e Entry) model.OperationLog {
	rec := model.OperationLog{
		OperationType: e.Operation,
		IPAddress:     e.IPAddress,
		UserAgent:     e.UserAgent,
	}
	if e.ActorID != 0 {
		id := e.ActorID
		rec.UserID = &id
	}
	switch d := e.Detail.(type) {
	case nil:
	case string:
		rec.OperationDetail = d
	default:
		if b, err := json.Marshal(d); err == nil {
			rec.OperationDetail = string(b)
		}
	}
	return rec
}
