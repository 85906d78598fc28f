// Package statediff turns player state transitions into the minimal set of
// outbound messages and coalesces high-frequency ones before delivery.
package statediff

import (
	"time"

	"ytcr.app/receiver/messages"
	"ytcr.app/receiver/player"
)

// VolumeKey is the coalescing key for player-originated volume changes.
const VolumeKey = "onVolumeChanged"

// VolumeDebounce is the window in which only the latest volume change is sent.
const VolumeDebounce = 200 * time.Millisecond

// Changes lists which parts of a snapshot differ.
type Changes struct {
	NowPlaying bool
	Playback   bool
	Volume     bool
	Autoplay   bool
}

// Compare returns the differences between previous and current. A nil
// previous counts as everything having changed.
func Compare(current player.Snapshot, previous *player.Snapshot) Changes {
	if previous == nil {
		return Changes{NowPlaying: true, Playback: true, Volume: true, Autoplay: true}
	}
	return Changes{
		NowPlaying: previous.PlaylistID != current.PlaylistID ||
			previous.CurrentItemID != current.CurrentItemID ||
			previous.CurrentIndex != current.CurrentIndex,
		Playback: previous.Status != current.Status || previous.Position != current.Position,
		Volume:   previous.Volume != current.Volume,
		Autoplay: previous.AutoplayItemID != current.AutoplayItemID,
	}
}

// Diff builds the messages warranted by ev. nav is the navigation info at the
// time of the event.
func Diff(ev player.StateEvent, nav player.NavInfo) []messages.Outbound {
	c := Compare(ev.Current, ev.Previous)

	var out []messages.Outbound
	if c.NowPlaying {
		out = append(out,
			messages.NowPlaying(ev.AID, ev.Current),
			messages.OnHasPreviousNextChanged(ev.AID, nav),
		)
	}
	if c.Playback {
		out = append(out, messages.OnStateChange(ev.AID, ev.Current))
	}
	if c.Volume {
		out = append(out, messages.OnVolumeChanged(ev.AID, ev.Current.Volume, true))
	}
	if c.Autoplay {
		out = append(out, messages.AutoplayUpNext(ev.AID, ev.Current.AutoplayItemID))
	}
	return out
}

// Coalescible reports whether msgs are only volume changes that no sender
// directly asked for. Those come from player-side drift and are debounced.
func Coalescible(aid player.AID, msgs []messages.Outbound) bool {
	if len(msgs) == 0 || aid.Valid {
		return false
	}
	for _, m := range msgs {
		if m.Name != messages.OnVolumeChangedName {
			return false
		}
	}
	return true
}
