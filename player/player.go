package player

import (
	"context"
	"time"
)

// Video is a playable queue item.
type Video struct {
	ID         string
	Index      int
	PlaylistID string
	CTT        string
	Params     string
}

// QueueState is what the queue currently points at. Nil items are absent.
type QueueState struct {
	Current  *Video
	Autoplay *Video
	Previous *Video
	Next     *Video
}

// CurrentID returns the current item id or "" when nothing is queued.
func (q QueueState) CurrentID() string {
	if q.Current == nil {
		return ""
	}
	return q.Current.ID
}

// CurrentIndex returns the current item index or -1 when nothing is queued.
func (q QueueState) CurrentIndex() int {
	if q.Current == nil {
		return -1
	}
	return q.Current.Index
}

// AutoplayID returns the autoplay target id or "" when there is none.
func (q QueueState) AutoplayID() string {
	if q.Autoplay == nil {
		return ""
	}
	return q.Autoplay.ID
}

// PlaylistUpdate is the decoded payload of a setPlaylist or updatePlaylist
// message.
type PlaylistUpdate struct {
	// Set is true for setPlaylist, false for updatePlaylist.
	Set          bool
	ListID       string
	VideoID      string
	VideoIDs     []string
	CurrentIndex int
	CurrentTime  time.Duration
	CTT          string
	Params       string
}

// Queue is the playlist side of the player.
type Queue interface {
	State() QueueState
	SetAutoplayMode(ctx context.Context, mode AutoplayMode) error
	UpdateByMessage(ctx context.Context, update PlaylistUpdate) error
}

// Player is the media engine as seen by the receiver app. Every operation that
// takes an AID reports it back on the StateEvent the operation causes.
type Player interface {
	State(ctx context.Context) (Snapshot, error)
	NavInfo() NavInfo
	AutoplayMode() AutoplayMode
	Volume(ctx context.Context) (Volume, error)
	SetVolume(ctx context.Context, v Volume, aid AID) error

	Play(ctx context.Context, v Video, start time.Duration, aid AID) error
	Pause(ctx context.Context, aid AID) error
	Resume(ctx context.Context, aid AID) error
	Stop(ctx context.Context, aid AID) error
	Next(ctx context.Context, aid AID) error
	Previous(ctx context.Context, aid AID) error
	Seek(ctx context.Context, position time.Duration) error

	// Reset stops playback and clears transient queue state.
	Reset(ctx context.Context) error

	Queue() Queue

	// Subscribe registers fn for state events. The returned func removes it.
	Subscribe(fn func(StateEvent)) (unsubscribe func())
}
