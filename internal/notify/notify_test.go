package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vadiminshakov/basket/pkg/retrier"
)

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Notify(_ context.Context, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func TestCore_ForwardsLogLines(t *testing.T) {
	rec := &recorder{}
	logger := zap.New(NewCore(rec, zapcore.InfoLevel)).With(zap.String("cycle", "c-1"))

	logger.Debug("hidden")
	logger.Info("portfolio value", zap.String("total", "1000.00"))
	logger.Error("cycle failed", zap.Error(errors.New("boom")))

	msgs := rec.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "INFO")
	assert.Contains(t, msgs[0], "portfolio value")
	assert.Contains(t, msgs[0], `"total": "1000.00"`)
	assert.Contains(t, msgs[0], `"cycle": "c-1"`)
	assert.Contains(t, msgs[1], "boom")
}

func TestCore_NilNotifier(t *testing.T) {
	logger := zap.New(NewCore(nil, zapcore.InfoLevel))
	assert.NotPanics(t, func() { logger.Info("nobody listens") })
}

type flakySender struct {
	mu       sync.Mutex
	failures int
	sent     []string
}

func (s *flakySender) Send(_ context.Context, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("discord unavailable")
	}
	s.sent = append(s.sent, content)
	return nil
}

func TestWebhook_DeliversWithRetries(t *testing.T) {
	s := &flakySender{failures: 2}
	w := NewWebhook(zap.NewNop(), s, retrier.New(retrier.WithMaxRetries(3), retrier.WithInitialInterval(time.Millisecond)), 8)

	w.Notify(context.Background(), "first")
	w.Notify(context.Background(), "second")
	w.Close()

	assert.Equal(t, []string{"first", "second"}, s.sent)

	assert.NotPanics(t, func() { w.Notify(context.Background(), "after close") })
	w.Close()
}

func TestWebhook_GivesUp(t *testing.T) {
	s := &flakySender{failures: 100}
	w := NewWebhook(zap.NewNop(), s, retrier.New(retrier.WithMaxRetries(1), retrier.WithInitialInterval(time.Millisecond)), 1)

	w.Notify(context.Background(), "lost")
	w.Close()

	assert.Empty(t, s.sent)
}

type rejectingSender struct {
	mu    sync.Mutex
	calls int
}

func (s *rejectingSender) Send(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return retrier.Permanent(errors.New("unknown webhook"))
}

func TestWebhook_RejectedIsNotRetried(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := &rejectingSender{}
	w := NewWebhook(zap.New(core), s, retrier.New(retrier.WithMaxRetries(3), retrier.WithInitialInterval(time.Millisecond)), 1)

	w.Notify(context.Background(), "hello")
	w.Close()

	assert.Equal(t, 1, s.calls)
	assert.Equal(t, 1, logs.FilterMessage("notification rejected").Len())
	assert.Zero(t, logs.FilterMessage("failed to deliver notification").Len())
}

func TestWebhook_GivesUpLogsFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := &flakySender{failures: 100}
	w := NewWebhook(zap.New(core), s, retrier.New(retrier.WithMaxRetries(1), retrier.WithInitialInterval(time.Millisecond)), 1)

	w.Notify(context.Background(), "lost")
	w.Close()

	assert.Equal(t, 1, logs.FilterMessage("failed to deliver notification").Len())
}
