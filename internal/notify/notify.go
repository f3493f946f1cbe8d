// Package notify delivers log lines to an external chat channel.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vadiminshakov/basket/pkg/retrier"
)

const defaultQueueSize = 256

// Notifier fire-and-forget message sink.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Nop discards every message.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string) {}

type sender interface {
	Send(ctx context.Context, content string) error
}

// Webhook queues messages and delivers them in the background so callers never
// block on the chat service. When the queue is full new messages are dropped.
type Webhook struct {
	sender  sender
	retrier *retrier.Retrier
	l       *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan string
	done   chan struct{}
}

// NewWebhook starts a delivery worker. l must not itself feed this webhook.
func NewWebhook(l *zap.Logger, s sender, r *retrier.Retrier, queueSize int) *Webhook {
	if queueSize < 1 {
		queueSize = defaultQueueSize
	}
	if r == nil {
		r = retrier.New(retrier.WithMaxRetries(2))
	}

	w := &Webhook{
		sender:  s,
		retrier: r,
		l:       l,
		queue:   make(chan string, queueSize),
		done:    make(chan struct{}),
	}
	go w.run()

	return w
}

// Notify implements Notifier.
func (w *Webhook) Notify(_ context.Context, text string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}

	select {
	case w.queue <- text:
	default:
		w.l.Warn("notification queue is full, dropping message")
	}
}

// Close stops accepting messages and waits until queued ones are delivered.
func (w *Webhook) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	<-w.done
}

func (w *Webhook) run() {
	defer close(w.done)

	ctx := context.Background()
	for text := range w.queue {
		var rejected bool
		err := w.retrier.Do(ctx, func(ctx context.Context) error {
			err := w.sender.Send(ctx, text)
			rejected = retrier.IsPermanent(err)
			return err
		})
		switch {
		case err == nil:
		case rejected:
			w.l.Warn("notification rejected", zap.Error(err))
		default:
			w.l.Warn("failed to deliver notification", zap.Error(err))
		}
	}
}
