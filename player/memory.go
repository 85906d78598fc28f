package player

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Memory is an in-process Player that keeps a queue and a transport state
// machine but renders nothing. It backs the debug binary and integration tests.
type Memory struct {
	// AutoplayResolver returns the video to autoplay after current when the
	// queue is exhausted. Nil means no autoplay target is ever offered. It is
	// called without the player lock held.
	AutoplayResolver func(current Video) (string, bool)
	Logger           zerolog.Logger

	mu           sync.Mutex
	now          func() time.Time
	status       Status
	position     time.Duration
	playingSince time.Time
	volume       Volume
	cpn          string
	last         *Snapshot
	subs         map[int]func(StateEvent)
	nextSub      int
	queue        *memoryQueue
}

type memoryQueue struct {
	p            *Memory
	listID       string
	videoIDs     []string
	index        int
	ctt          string
	params       string
	autoplayMode AutoplayMode

	resolved    bool
	resolvedFor autoplayKey
	autoplay    *Video
}

// NewMemory returns a stopped Memory player at volume 100.
func NewMemory() *Memory {
	m := &Memory{
		Logger: zerolog.Nop(),
		now:    time.Now,
		status: StatusStopped,
		volume: Volume{Level: 100},
		subs:   make(map[int]func(StateEvent)),
	}
	m.queue = &memoryQueue{p: m, index: -1, autoplayMode: AutoplayUnsupported}
	return m
}

// Subscribe implements Player.
func (m *Memory) Subscribe(fn func(StateEvent)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// State implements Player.
func (m *Memory) State(context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(), nil
}

// NavInfo implements Player.
func (m *Memory) NavInfo() NavInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.navLocked()
}

// AutoplayMode implements Player.
func (m *Memory) AutoplayMode() AutoplayMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.autoplayMode
}

// Volume implements Player.
func (m *Memory) Volume(context.Context) (Volume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume, nil
}

// SetVolume implements Player.
func (m *Memory) SetVolume(ctx context.Context, v Volume, aid AID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.Level < 0 {
		v.Level = 0
	}
	if v.Level > 100 {
		v.Level = 100
	}
	m.Logger.Debug().Str("Method", "SetVolume").Int("Level", v.Level).Bool("Muted", v.Muted).Msg("")

	m.mu.Lock()
	m.volume = v
	m.mu.Unlock()
	m.emit(aid)
	return nil
}

// Play implements Player. The queue is moved to v when v is part of it.
func (m *Memory) Play(ctx context.Context, v Video, start time.Duration, aid AID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Logger.Debug().Str("Method", "Play").Str("VideoID", v.ID).Dur("Start", start).Msg("")

	m.mu.Lock()
	q := m.queue
	switch {
	case v.Index >= 0 && v.Index < len(q.videoIDs) && q.videoIDs[v.Index] == v.ID:
		q.index = v.Index
	default:
		q.index = indexOf(q.videoIDs, v.ID)
		if q.index < 0 {
			q.videoIDs = append(q.videoIDs, v.ID)
			q.index = len(q.videoIDs) - 1
		}
	}
	if v.PlaylistID != "" {
		q.listID = v.PlaylistID
	}
	m.cpn = v.ID + "-" + m.now().Format("150405.000")
	m.startLocked(start)
	m.mu.Unlock()

	q.refreshAutoplay()
	m.emit(aid)
	return nil
}

// Pause implements Player.
func (m *Memory) Pause(ctx context.Context, aid AID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.status != StatusPlaying {
		m.mu.Unlock()
		return nil
	}
	m.position = m.positionLocked()
	m.status = StatusPaused
	m.mu.Unlock()

	m.emit(aid)
	return nil
}

// Resume implements Player.
func (m *Memory) Resume(ctx context.Context, aid AID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.status != StatusPaused {
		m.mu.Unlock()
		return nil
	}
	m.startLocked(m.position)
	m.mu.Unlock()

	m.emit(aid)
	return nil
}

// Stop implements Player.
func (m *Memory) Stop(ctx context.Context, aid AID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.status = StatusStopped
	m.position = 0
	m.mu.Unlock()

	m.emit(aid)
	return nil
}

// Next implements Player. Past the end of the queue it plays the autoplay
// target, if any.
func (m *Memory) Next(ctx context.Context, aid AID) error {
	m.mu.Lock()
	q := m.queue
	var target Video
	switch {
	case q.index+1 < len(q.videoIDs):
		target = Video{ID: q.videoIDs[q.index+1], Index: q.index + 1, PlaylistID: q.listID}
	default:
		ap := q.autoplayLocked()
		if ap == nil {
			m.mu.Unlock()
			return nil
		}
		target = *ap
	}
	m.mu.Unlock()

	return m.Play(ctx, target, 0, aid)
}

// Previous implements Player.
func (m *Memory) Previous(ctx context.Context, aid AID) error {
	m.mu.Lock()
	q := m.queue
	if q.index <= 0 {
		m.mu.Unlock()
		return nil
	}
	target := Video{ID: q.videoIDs[q.index-1], Index: q.index - 1, PlaylistID: q.listID}
	m.mu.Unlock()

	return m.Play(ctx, target, 0, aid)
}

// Seek implements Player.
func (m *Memory) Seek(ctx context.Context, position time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if position < 0 {
		position = 0
	}

	m.mu.Lock()
	m.position = position
	if m.status == StatusPlaying {
		m.playingSince = m.now()
	}
	m.mu.Unlock()

	m.emit(AID{})
	return nil
}

// Reset implements Player. No event is emitted; the next event carries a nil
// Previous.
func (m *Memory) Reset(context.Context) error {
	m.Logger.Debug().Str("Method", "Reset").Msg("")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusStopped
	m.position = 0
	m.cpn = ""
	m.last = nil
	m.queue.listID = ""
	m.queue.videoIDs = nil
	m.queue.index = -1
	m.queue.ctt = ""
	m.queue.params = ""
	return nil
}

// Queue implements Player.
func (m *Memory) Queue() Queue {
	return m.queue
}

func (m *Memory) startLocked(from time.Duration) {
	m.status = StatusPlaying
	m.position = from
	m.playingSince = m.now()
}

func (m *Memory) positionLocked() time.Duration {
	if m.status != StatusPlaying {
		return m.position
	}
	return m.position + m.now().Sub(m.playingSince)
}

func (m *Memory) navLocked() NavInfo {
	q := m.queue
	return NavInfo{
		HasPrevious: q.index > 0,
		HasNext:     (q.index >= 0 && q.index+1 < len(q.videoIDs)) || q.autoplayLocked() != nil,
	}
}

func (m *Memory) snapshotLocked() Snapshot {
	qs := m.queue.stateLocked()
	return Snapshot{
		Status:         m.status,
		Position:       m.positionLocked(),
		Volume:         m.volume,
		PlaylistID:     m.queue.listID,
		CurrentItemID:  qs.CurrentID(),
		CurrentIndex:   qs.CurrentIndex(),
		AutoplayItemID: qs.AutoplayID(),
		CPN:            m.cpn,
	}
}

func (m *Memory) emit(aid AID) {
	m.mu.Lock()
	cur := m.snapshotLocked()
	prev := m.last
	m.last = &cur
	subs := make([]func(StateEvent), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	ev := StateEvent{AID: aid, Current: cur, Previous: prev}
	for _, fn := range subs {
		fn(ev)
	}
}

// State implements Queue.
func (q *memoryQueue) State() QueueState {
	q.p.mu.Lock()
	defer q.p.mu.Unlock()
	return q.stateLocked()
}

// SetAutoplayMode implements Queue.
func (q *memoryQueue) SetAutoplayMode(ctx context.Context, mode AutoplayMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.p.mu.Lock()
	q.autoplayMode = mode
	q.p.mu.Unlock()

	q.refreshAutoplay()
	return nil
}

// UpdateByMessage implements Queue. setPlaylist replaces the queue and moves to
// the requested index; updatePlaylist replaces the list but keeps the current
// video if it is still part of it.
func (q *memoryQueue) UpdateByMessage(ctx context.Context, u PlaylistUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.p.mu.Lock()
	q.updateLocked(u)
	q.p.mu.Unlock()

	q.refreshAutoplay()
	return nil
}

func (q *memoryQueue) updateLocked(u PlaylistUpdate) {
	ids := u.VideoIDs
	if len(ids) == 0 && u.VideoID != "" {
		ids = []string{u.VideoID}
	}

	currentID := ""
	if q.index >= 0 && q.index < len(q.videoIDs) {
		currentID = q.videoIDs[q.index]
	}

	q.listID = u.ListID
	q.videoIDs = append([]string(nil), ids...)

	if u.Set {
		q.ctt = u.CTT
		q.params = u.Params
		switch {
		case u.CurrentIndex >= 0 && u.CurrentIndex < len(ids):
			q.index = u.CurrentIndex
		case u.VideoID != "":
			q.index = indexOf(ids, u.VideoID)
		default:
			q.index = -1
		}
		return
	}

	q.index = indexOf(ids, currentID)
}

func (q *memoryQueue) stateLocked() QueueState {
	var s QueueState
	if q.index < 0 || q.index >= len(q.videoIDs) {
		return s
	}
	s.Current = &Video{ID: q.videoIDs[q.index], Index: q.index, PlaylistID: q.listID, CTT: q.ctt, Params: q.params}
	if q.index > 0 {
		s.Previous = &Video{ID: q.videoIDs[q.index-1], Index: q.index - 1, PlaylistID: q.listID}
	}
	if q.index+1 < len(q.videoIDs) {
		s.Next = &Video{ID: q.videoIDs[q.index+1], Index: q.index + 1, PlaylistID: q.listID}
	}
	s.Autoplay = q.autoplayLocked()
	return s
}

// autoplayKey identifies the queue tail an autoplay target was resolved for.
type autoplayKey struct {
	listID string
	id     string
	index  int
}

func (q *memoryQueue) autoplayKeyLocked() (autoplayKey, bool) {
	if q.autoplayMode != AutoplayEnabled || q.p.AutoplayResolver == nil {
		return autoplayKey{}, false
	}
	if q.index < 0 || q.index >= len(q.videoIDs) || q.index+1 < len(q.videoIDs) {
		return autoplayKey{}, false
	}
	return autoplayKey{listID: q.listID, id: q.videoIDs[q.index], index: q.index}, true
}

func (q *memoryQueue) autoplayLocked() *Video {
	key, ok := q.autoplayKeyLocked()
	if !ok || !q.resolved || q.resolvedFor != key {
		return nil
	}
	return q.autoplay
}

// refreshAutoplay resolves the autoplay target of the current tail. The
// resolver runs without the player lock, so it may read the player.
func (q *memoryQueue) refreshAutoplay() {
	q.p.mu.Lock()
	key, ok := q.autoplayKeyLocked()
	resolve := q.p.AutoplayResolver
	q.p.mu.Unlock()
	if !ok {
		return
	}

	var target *Video
	if id, found := resolve(Video{ID: key.id, Index: key.index, PlaylistID: key.listID}); found {
		target = &Video{ID: id, Index: key.index + 1}
	}

	q.p.mu.Lock()
	defer q.p.mu.Unlock()
	if current, ok := q.autoplayKeyLocked(); !ok || current != key {
		return
	}
	q.resolved, q.resolvedFor, q.autoplay = true, key, target
}

func indexOf(ids []string, id string) int {
	if id == "" {
		return -1
	}
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
