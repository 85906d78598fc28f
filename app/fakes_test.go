package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ytcr.app/receiver/messages"
	"ytcr.app/receiver/player"
	"ytcr.app/receiver/session"
)

type fakeChannel struct {
	mock.Mock

	mu       sync.Mutex
	listener session.Listener
	sent     [][]messages.Outbound
}

func (f *fakeChannel) Begin(ctx context.Context) error {
	return f.Called(ctx).Error(0)
}

func (f *fakeChannel) End(ctx context.Context) error {
	return f.Called(ctx).Error(0)
}

func (f *fakeChannel) RegisterPairingCode(ctx context.Context, code string) error {
	return f.Called(ctx, code).Error(0)
}

func (f *fakeChannel) Send(_ context.Context, msgs []messages.Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]messages.Outbound(nil), msgs...))
	return nil
}

func (f *fakeChannel) SetListener(l session.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = l
}

func (f *fakeChannel) PairingCodeRequestService() session.PairingCodeRequestService {
	return nil
}

func (f *fakeChannel) deliver(msgs ...messages.Message) {
	f.mu.Lock()
	l := f.listener
	f.mu.Unlock()
	if l != nil {
		l.OnMessages(msgs)
	}
}

func (f *fakeChannel) terminate(err error) {
	f.mu.Lock()
	l := f.listener
	f.mu.Unlock()
	if l != nil {
		l.OnTerminate(err)
	}
}

func (f *fakeChannel) batches() [][]messages.Outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]messages.Outbound(nil), f.sent...)
}

func (f *fakeChannel) attached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listener != nil
}

// fakePlayer records the operations it is asked to do.
type fakePlayer struct {
	mu    sync.Mutex
	calls []string
	snap  player.Snapshot
	vol   player.Volume
	nav   player.NavInfo
	queue *fakeQueue
	subs  map[int]func(player.StateEvent)
	next  int

	failOn map[string]error
}

func newFakePlayer() *fakePlayer {
	p := &fakePlayer{
		vol:    player.Volume{Level: 50},
		subs:   make(map[int]func(player.StateEvent)),
		failOn: make(map[string]error),
	}
	p.snap.Status = player.StatusStopped
	p.queue = &fakeQueue{p: p, mode: player.AutoplayUnsupported}
	return p
}

func (p *fakePlayer) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	return p.failOn[call]
}

func (p *fakePlayer) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakePlayer) emit(ev player.StateEvent) {
	p.mu.Lock()
	fns := make([]func(player.StateEvent), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (p *fakePlayer) State(context.Context) (player.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap, nil
}

func (p *fakePlayer) NavInfo() player.NavInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nav
}

func (p *fakePlayer) AutoplayMode() player.AutoplayMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.mode
}

func (p *fakePlayer) Volume(context.Context) (player.Volume, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vol, nil
}

func (p *fakePlayer) SetVolume(_ context.Context, v player.Volume, _ player.AID) error {
	if err := p.record(fmt.Sprintf("volume:%d", v.Level)); err != nil {
		return err
	}
	p.mu.Lock()
	p.vol = v
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Play(_ context.Context, v player.Video, start time.Duration, _ player.AID) error {
	return p.record(fmt.Sprintf("play:%s@%s", v.ID, start))
}

func (p *fakePlayer) Pause(context.Context, player.AID) error    { return p.record("pause") }
func (p *fakePlayer) Resume(context.Context, player.AID) error   { return p.record("resume") }
func (p *fakePlayer) Stop(context.Context, player.AID) error     { return p.record("stop") }
func (p *fakePlayer) Next(context.Context, player.AID) error     { return p.record("next") }
func (p *fakePlayer) Previous(context.Context, player.AID) error { return p.record("previous") }

func (p *fakePlayer) Seek(_ context.Context, pos time.Duration) error {
	return p.record(fmt.Sprintf("seek:%s", pos))
}

func (p *fakePlayer) Reset(context.Context) error { return p.record("reset") }

func (p *fakePlayer) Queue() player.Queue { return p.queue }

func (p *fakePlayer) Subscribe(fn func(player.StateEvent)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *fakePlayer) subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

type fakeQueue struct {
	p     *fakePlayer
	state player.QueueState
	mode  player.AutoplayMode
	// apply computes the queue state an update leads to.
	apply func(player.PlaylistUpdate) player.QueueState
}

func (q *fakeQueue) State() player.QueueState {
	q.p.mu.Lock()
	defer q.p.mu.Unlock()
	return q.state
}

func (q *fakeQueue) SetAutoplayMode(_ context.Context, mode player.AutoplayMode) error {
	q.p.mu.Lock()
	defer q.p.mu.Unlock()
	q.mode = mode
	return nil
}

func (q *fakeQueue) UpdateByMessage(_ context.Context, u player.PlaylistUpdate) error {
	q.p.mu.Lock()
	defer q.p.mu.Unlock()
	if q.apply != nil {
		q.state = q.apply(u)
	}
	return nil
}

func newStartedApp(t *testing.T, opts ...Option) (*App, *fakePlayer, *fakeChannel) {
	t.Helper()
	p := newFakePlayer()
	ch := &fakeChannel{}
	ch.On("Begin", mock.Anything).Return(nil)
	ch.On("End", mock.Anything).Return(nil)

	a := New(p, ch, opts...)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { a.Stop(nil) })
	return a, p, ch
}

// settle waits until every task queued so far has run.
func settle(t *testing.T, a *App) {
	t.Helper()
	a.mu.Lock()
	q := a.queue
	a.mu.Unlock()
	require.NotNil(t, q)

	done := make(chan struct{})
	require.True(t, q.push(func(context.Context) { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task queue did not drain")
	}
}

func senderPayload(id string, autoplay bool) map[string]any {
	caps := "que,mus"
	if autoplay {
		caps = "que,atp,mus"
	}
	return map[string]any{"id": id, "name": "Sender " + id, "capabilities": caps}
}

func connectMsg(id string, autoplay bool) messages.Message {
	return messages.Message{Name: messages.RemoteConnected, Payload: senderPayload(id, autoplay)}
}

func disconnectMsg(id string) messages.Message {
	return messages.Message{Name: messages.RemoteDisconnected, Payload: senderPayload(id, false)}
}

func names(batch []messages.Outbound) []messages.Name {
	out := make([]messages.Name, 0, len(batch))
	for _, m := range batch {
		out = append(out, m.Name)
	}
	return out
}
