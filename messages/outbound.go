package messages

import (
	"strconv"
	"time"

	"ytcr.app/receiver/player"
)

// Outbound is a message sent to connected senders. An absent AID marks a
// broadcast.
type Outbound struct {
	AID     player.AID        `json:"AID"`
	Name    Name              `json:"name"`
	Payload map[string]string `json:"payload"`

	// Unsolicited marks messages that originate from player-side changes
	// rather than from a sender request.
	Unsolicited bool `json:"-"`
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func playbackFields(s player.Snapshot) map[string]string {
	return map[string]string{
		"currentTime":       seconds(s.Position),
		"state":             strconv.Itoa(int(s.Status)),
		"duration":          seconds(s.Duration),
		"loadedTime":        "0",
		"seekableStartTime": "0",
		"seekableEndTime":   seconds(s.Duration),
		"cpn":               s.CPN,
	}
}

// NowPlaying describes the current item. The payload is empty when nothing
// is queued.
func NowPlaying(aid player.AID, s player.Snapshot) Outbound {
	payload := map[string]string{}
	if s.CurrentItemID != "" {
		payload = playbackFields(s)
		payload["videoId"] = s.CurrentItemID
		payload["currentIndex"] = strconv.Itoa(s.CurrentIndex)
		if s.PlaylistID != "" {
			payload["listId"] = s.PlaylistID
		}
	}
	return Outbound{AID: aid, Name: NowPlayingName, Payload: payload}
}

// OnStateChange reports transport status and position.
func OnStateChange(aid player.AID, s player.Snapshot) Outbound {
	return Outbound{AID: aid, Name: OnStateChangeName, Payload: playbackFields(s)}
}

// OnVolumeChanged reports the player volume.
func OnVolumeChanged(aid player.AID, v player.Volume, unsolicited bool) Outbound {
	return Outbound{
		AID:  aid,
		Name: OnVolumeChangedName,
		Payload: map[string]string{
			"volume": strconv.Itoa(v.Level),
			"muted":  strconv.FormatBool(v.Muted),
		},
		Unsolicited: unsolicited,
	}
}

// OnHasPreviousNextChanged reports queue navigation availability.
func OnHasPreviousNextChanged(aid player.AID, nav player.NavInfo) Outbound {
	return Outbound{
		AID:  aid,
		Name: OnHasPreviousNextChangedName,
		Payload: map[string]string{
			"hasNext":     strconv.FormatBool(nav.HasNext),
			"hasPrevious": strconv.FormatBool(nav.HasPrevious),
		},
	}
}

// OnAutoplayModeChanged reports the device-wide autoplay mode.
func OnAutoplayModeChanged(aid player.AID, mode player.AutoplayMode) Outbound {
	return Outbound{
		AID:     aid,
		Name:    OnAutoplayModeChangedName,
		Payload: map[string]string{"autoplayMode": string(mode)},
	}
}

// AutoplayUpNext announces the autoplay target; an empty id clears it.
func AutoplayUpNext(aid player.AID, videoID string) Outbound {
	payload := map[string]string{}
	if videoID != "" {
		payload["videoId"] = videoID
	}
	return Outbound{AID: aid, Name: AutoplayUpNextName, Payload: payload}
}

// PairingCode carries a registered pairing code to the transport's client.
func PairingCode(code string) Outbound {
	return Outbound{Name: PairingCodeName, Payload: map[string]string{"code": code}}
}
