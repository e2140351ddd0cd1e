package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grx1242064203-bit/fund-calendar/internal/model"
)

type memorySink struct {
	mu      sync.Mutex
	logs    []model.OperationLog
	err     error
	release chan struct{}
}

func (s *memorySink) Write(ctx context.Context, l model.OperationLog) error {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.logs = append(s.logs, l)
	return nil
}

func (s *memorySink) all() []model.OperationLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OperationLog(nil), s.logs...)
}

func TestLogger_RecordWritesInBackground(t *testing.T) {
	sink := &memorySink{}
	l := New(sink, "memory", time.Second, zerolog.Nop())

	l.Record(Entry{
		ActorID:   42,
		Operation: OpProductUpsert,
		Detail:    map[string]any{"productCode": "P001"},
		IPAddress: "10.0.0.1",
		UserAgent: "curl/8",
	})
	l.Record(Entry{Operation: OpLogin, Detail: "raw"})
	require.NoError(t, l.Close(context.Background()))

	logs := sink.all()
	require.Len(t, logs, 2)
	byOp := map[string]model.OperationLog{}
	for _, rec := range logs {
		byOp[rec.OperationType] = rec
	}
	upsert := byOp[OpProductUpsert]
	require.NotNil(t, upsert.UserID)
	assert.Equal(t, uint64(42), *upsert.UserID)
	assert.JSONEq(t, `{"productCode":"P001"}`, upsert.OperationDetail)
	assert.Equal(t, "10.0.0.1", upsert.IPAddress)
	assert.Equal(t, "curl/8", upsert.UserAgent)

	login := byOp[OpLogin]
	assert.Nil(t, login.UserID)
	assert.Equal(t, "raw", login.OperationDetail)
}

func TestLogger_RecordDoesNotBlock(t *testing.T) {
	sink := &memorySink{release: make(chan struct{})}
	l := New(sink, "memory", time.Second, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		l.Record(Entry{Operation: OpHolidayCreate})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a slow sink")
	}

	close(sink.release)
	require.NoError(t, l.Close(context.Background()))
	assert.Len(t, sink.all(), 1)
}

func TestLogger_FailuresAreSwallowed(t *testing.T) {
	sink := &memorySink{err: errors.New("db down")}
	l := New(sink, "memory", time.Second, zerolog.Nop())

	assert.NotPanics(t, func() { l.Record(Entry{Operation: OpHolidayDelete}) })
	require.NoError(t, l.Close(context.Background()))
	assert.Empty(t, sink.all())
}

func TestLogger_WriteTimeout(t *testing.T) {
	sink := &memorySink{release: make(chan struct{})}
	l := New(sink, "memory", 20*time.Millisecond, zerolog.Nop())

	l.Record(Entry{Operation: OpLogin})
	require.NoError(t, l.Close(context.Background()))
	assert.Empty(t, sink.all())
}

func TestLogger_CloseDropsLateEntries(t *testing.T) {
	sink := &memorySink{}
	l := New(sink, "memory", time.Second, zerolog.Nop())
	require.NoError(t, l.Close(context.Background()))

	l.Record(Entry{Operation: OpLogin})

	assert.Empty(t, sink.all())
}

func TestLogger_CloseHonoursContext(t *testing.T) {
	sink := &memorySink{release: make(chan struct{})}
	defer close(sink.release)
	l := New(sink, "memory", time.Minute, zerolog.Nop())
	l.Record(Entry{Operation: OpLogin})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Close(ctx), context.DeadlineExceeded)
}
