// Package app is the receiver side of a YouTube cast session. It routes
// lounge messages to a player, tracks connected senders and negotiates the
// autoplay mode among them, and reports player state changes back.
package app

import (
	"context"
	"io"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ytcr.app/receiver/messages"
	"ytcr.app/receiver/player"
	"ytcr.app/receiver/sender"
	"ytcr.app/receiver/session"
	"ytcr.app/receiver/statediff"
)

const defaultName = "YouTube on Go"

// State is the lifecycle state of an App.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Stopping:
		return "STOPPING"
	}
	return "UNKNOWN"
}

// Option configures an App.
type Option func(*App)

// WithName sets the app name reported by Name.
func WithName(name string) Option {
	return func(a *App) {
		if name != "" {
			a.name = name
		}
	}
}

// WithLogger sets the logger used by the app.
func WithLogger(l zerolog.Logger) Option {
	return func(a *App) { a.Logger = l }
}

// WithLogOutput makes the app build its own timestamped logger on w.
func WithLogOutput(w io.Writer) Option {
	return func(a *App) { a.LogOutput = w }
}

// WithAutoplayOnConnect sets the initial EnableAutoplayOnConnect value.
func WithAutoplayOnConnect(enabled bool) Option {
	return func(a *App) { a.EnableAutoplayOnConnect(enabled) }
}

// WithOperationTimeout bounds every queued message handler. Zero means no
// bound.
func WithOperationTimeout(d time.Duration) Option {
	return func(a *App) { a.opTimeout = d }
}

// WithVolumeDebounce sets the window unsolicited volume changes are
// coalesced in.
func WithVolumeDebounce(d time.Duration) Option {
	return func(a *App) { a.volumeDebounce = d }
}

// App binds a player to a session channel.
type App struct {
	Logger    zerolog.Logger
	LogOutput io.Writer

	name           string
	pid            string
	player         player.Player
	channel        session.Channel
	roster         *sender.Registry
	batcher        *statediff.Batcher
	opTimeout      time.Duration
	volumeDebounce time.Duration
	events         events
	initLogOnce    sync.Once

	// notifying counts worker tasks currently inside event listeners.
	notifying atomic.Int32

	// lifecycle serializes Start and Stop.
	lifecycle   sync.Mutex
	mu          sync.Mutex
	state       State
	autoplay    autoplayNegotiator
	queue       *taskQueue
	cancel      context.CancelFunc
	unsubPlayer func()
}

// New returns a stopped App driving p over ch.
func New(p player.Player, ch session.Channel, opts ...Option) *App {
	a := &App{
		Logger:         zerolog.Nop(),
		name:           defaultName,
		pid:            uuid.NewString(),
		player:         p,
		channel:        ch,
		roster:         sender.NewRegistry(),
		volumeDebounce: statediff.VolumeDebounce,
		autoplay:       autoplayNegotiator{onConnect: player.AutoplayEnabled},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.batcher = statediff.NewBatcher(ch, *a.Log())
	return a
}

// Log returns the zerolog logger, initializing it lazily if LogOutput is set.
func (a *App) Log() *zerolog.Logger {
	if a.LogOutput != nil {
		a.initLogOnce.Do(func() {
			a.Logger = zerolog.New(a.LogOutput).With().Timestamp().Logger()
		})
	}
	return &a.Logger
}

// Name returns the app name.
func (a *App) Name() string { return a.name }

// PID returns the process id generated for this App. It never changes.
func (a *App) PID() string { return a.pid }

// State returns the current lifecycle state.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *App) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// ConnectedSenders returns the senders currently connected, in connection
// order.
func (a *App) ConnectedSenders() []sender.Sender {
	return a.roster.All()
}

// EnableAutoplayOnConnect sets whether the first autoplay capable sender
// finds autoplay ENABLED or DISABLED.
func (a *App) EnableAutoplayOnConnect(enabled bool) {
	mode := player.AutoplayDisabled
	if enabled {
		mode = player.AutoplayEnabled
	}
	a.mu.Lock()
	a.autoplay.onConnect = mode
	a.mu.Unlock()
}

// PairingCodeRequestService returns the channel's pairing code service.
func (a *App) PairingCodeRequestService() session.PairingCodeRequestService {
	return a.channel.PairingCodeRequestService()
}

// Start attaches the app to its player and channel and begins the session.
// Calling Start on an App that is not stopped does nothing.
func (a *App) Start(ctx context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	if a.State() != Stopped {
		return nil
	}
	a.setState(Starting)
	a.Log().Debug().Str("Method", "Start").Msg("starting app")

	runCtx, cancel := context.WithCancel(context.Background())
	q := newTaskQueue()
	go q.run(runCtx, a.opTimeout, a.reportError)

	a.mu.Lock()
	a.queue = q
	a.cancel = cancel
	a.mu.Unlock()

	a.unsubPlayer = a.player.Subscribe(func(ev player.StateEvent) {
		q.push(func(ctx context.Context) { a.handlePlayerState(ctx, ev) })
	})
	a.channel.SetListener(&channelListener{app: a, queue: q})

	if err := a.channel.Begin(ctx); err != nil {
		a.detach()
		q.close()
		cancel()
		q.wait()
		a.setState(Stopped)
		a.Log().Error().Str("Method", "Start").Err(err).Msg("failed to begin session")
		return &AppError{Msg: "failed to start app", Err: err}
	}

	a.setState(Running)
	a.Log().Info().Str("Method", "Start").Str("PID", a.pid).Msg("app started")
	return nil
}

// Stop ends the session. A nil err on an App that is not running does
// nothing. A non-nil err is always honored and delivered to OnTerminate
// listeners once the app is stopped.
//
// Stop may be called from an event listener. The teardown then completes in
// the background once the listener returns, and Stop returns early with the
// app still Stopping.
func (a *App) Stop(err error) {
	a.lifecycle.Lock()

	if a.State() != Running && err == nil {
		a.lifecycle.Unlock()
		return
	}
	a.setState(Stopping)
	a.Log().Debug().Str("Method", "Stop").AnErr("Reason", err).Msg("stopping app")

	a.mu.Lock()
	q, cancel := a.queue, a.cancel
	a.queue, a.cancel = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.detach()
	if q == nil {
		a.finishStop(err)
		return
	}
	if dropped := q.close(); dropped > 0 {
		a.Log().Debug().Str("Method", "Stop").Int("Dropped", dropped).Msg("dropped queued tasks")
	}

	// The worker cannot finish while one of its listeners is waiting on it.
	if a.notifying.Load() > 0 {
		go func() {
			q.wait()
			a.finishStop(err)
		}()
		return
	}
	q.wait()
	a.finishStop(err)
}

// finishStop runs once the worker is gone. It releases the lifecycle lock
// taken by Stop before notifying listeners.
func (a *App) finishStop(err error) {
	a.batcher.Cancel()

	ctx, done := a.opContext(context.Background())
	defer done()
	if rerr := a.player.Reset(ctx); rerr != nil {
		a.Log().Warn().Str("Method", "Stop").Err(rerr).Msg("ignoring player reset error")
	}
	if eerr := a.channel.End(ctx); eerr != nil {
		a.Log().Warn().Str("Method", "Stop").Err(eerr).Msg("ignoring session end error")
	}

	a.mu.Lock()
	a.autoplay.beforeOverride = ""
	a.mu.Unlock()
	senders := a.roster.Clear()
	a.setState(Stopped)
	a.Log().Info().Str("Method", "Stop").Msg("app stopped")
	a.lifecycle.Unlock()

	for _, s := range senders {
		a.events.senderDisconnect.emit(s)
	}
	if err != nil {
		a.events.terminate.emit(err)
	}
}

// Launch handles a launch request from the DIAL layer. launchData is form
// encoded and must carry a pairingCode. It returns the app PID.
func (a *App) Launch(ctx context.Context, launchData string) (string, error) {
	values, err := url.ParseQuery(launchData)
	if err != nil {
		a.Log().Warn().Str("Method", "Launch").Err(err).Msg("malformed launch data")
	}

	code := values.Get("pairingCode")
	if code == "" {
		return "", &AppError{
			Msg: "failed to launch app",
			Err: &IncompleteAPIDataError{Msg: "invalid launch data", Missing: []string{"pairingCode"}},
		}
	}

	a.Log().Debug().Str("Method", "Launch").Msg("registering pairing code")
	if err := a.channel.RegisterPairingCode(ctx, code); err != nil {
		return "", &AppError{Msg: "failed to launch app", Err: err}
	}
	return a.pid, nil
}

func (a *App) detach() {
	if a.unsubPlayer != nil {
		a.unsubPlayer()
		a.unsubPlayer = nil
	}
	a.channel.SetListener(nil)
}

func (a *App) opContext(parent context.Context) (context.Context, context.CancelFunc) {
	if a.opTimeout > 0 {
		return context.WithTimeout(parent, a.opTimeout)
	}
	return context.WithCancel(parent)
}

// notify runs listener calls made from the worker.
func (a *App) notify(fn func()) {
	a.notifying.Add(1)
	defer a.notifying.Add(-1)
	fn()
}

func (a *App) reportError(err error) {
	a.Log().Error().Err(err).Msg("recoverable error")
	a.notify(func() { a.events.errs.emit(err) })
}

type channelListener struct {
	app   *App
	queue *taskQueue
}

func (l *channelListener) OnMessages(batch []messages.Message) {
	if !l.queue.push(func(ctx context.Context) { l.app.handleBatch(ctx, batch) }) {
		l.app.Log().Debug().Str("Method", "OnMessages").Int("Count", len(batch)).Msg("app stopping, batch dropped")
	}
}

func (l *channelListener) OnTerminate(err error) {
	go l.app.Stop(err)
}
