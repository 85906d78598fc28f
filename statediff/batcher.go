package statediff

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ytcr.app/receiver/messages"
)

// Transport delivers a batch of outbound messages.
type Transport interface {
	Send(ctx context.Context, msgs []messages.Outbound) error
}

type sendOptions struct {
	key   string
	delay time.Duration
}

// SendOption configures Batcher.Send.
type SendOption func(*sendOptions)

// Coalesce delays delivery by delay. A later Send with the same key inside
// the window replaces the pending batch and restarts the window.
func Coalesce(key string, delay time.Duration) SendOption {
	return func(o *sendOptions) {
		o.key = key
		o.delay = delay
	}
}

type pendingBatch struct {
	msgs  []messages.Outbound
	timer *time.Timer
	gen   uint64
}

// Batcher sits between the app and the session channel. Timers fire on their
// own goroutine; the pending map is guarded by mu. firing is read-held for
// the duration of every timer delivery.
type Batcher struct {
	transport Transport
	log       zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingBatch
	gen     uint64
	firing  sync.RWMutex
}

// NewBatcher returns a Batcher delivering through t.
func NewBatcher(t Transport, log zerolog.Logger) *Batcher {
	return &Batcher{
		transport: t,
		log:       log,
		pending:   make(map[string]*pendingBatch),
	}
}

// Send delivers msgs now, or later when a Coalesce option is given.
func (b *Batcher) Send(ctx context.Context, msgs []messages.Outbound, opts ...SendOption) error {
	if len(msgs) == 0 {
		return nil
	}

	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.key == "" {
		b.supersede(msgs)
		return b.transport.Send(ctx, msgs)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.pending[o.key]; ok {
		p.timer.Stop()
	}
	b.gen++
	gen := b.gen
	key := o.key
	b.pending[key] = &pendingBatch{
		msgs:  msgs,
		gen:   gen,
		timer: time.AfterFunc(o.delay, func() { b.fire(key, gen) }),
	}
	b.log.Debug().Str("Method", "Send").Str("Key", key).Dur("Delay", o.delay).Msg("coalescing")
	return nil
}

// supersede drops pending batches carrying a message that msgs also
// carries, so a stale value never lands after a fresher one.
func (b *Batcher) supersede(msgs []messages.Outbound) {
	names := make(map[messages.Name]struct{}, len(msgs))
	for _, m := range msgs {
		names[m.Name] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for key, p := range b.pending {
		for _, m := range p.msgs {
			if _, ok := names[m.Name]; ok {
				p.timer.Stop()
				delete(b.pending, key)
				b.log.Debug().Str("Method", "supersede").Str("Key", key).Msg("pending batch superseded")
				break
			}
		}
	}
}

func (b *Batcher) fire(key string, gen uint64) {
	b.mu.Lock()
	p, ok := b.pending[key]
	if !ok || p.gen != gen {
		b.mu.Unlock()
		return
	}
	delete(b.pending, key)
	b.firing.RLock()
	b.mu.Unlock()
	defer b.firing.RUnlock()

	if err := b.transport.Send(context.Background(), p.msgs); err != nil {
		b.log.Error().Str("Method", "fire").Str("Key", key).Err(err).Msg("coalesced send failed")
	}
}

// Cancel drops every pending batch without sending it. It returns once no
// timer delivery is in flight.
func (b *Batcher) Cancel() {
	b.mu.Lock()
	for key, p := range b.pending {
		p.timer.Stop()
		delete(b.pending, key)
	}
	b.mu.Unlock()

	b.firing.Lock()
	b.firing.Unlock()
}

// Pending returns the number of keys waiting for their window to close.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
