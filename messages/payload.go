package messages

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"ytcr.app/receiver/player"
)

// ErrInvalidPayload is wrapped by every payload decoding failure.
var ErrInvalidPayload = errors.New("messages: invalid payload")

// Decode decodes an untrusted payload into out. Lounge payloads carry numbers
// and booleans as strings and lists as comma separated strings, so decoding
// is weakly typed.
func Decode(payload map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := dec.Decode(payload); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

type playlistPayload struct {
	ListID       string   `mapstructure:"listId"`
	VideoID      string   `mapstructure:"videoId"`
	VideoIDs     []string `mapstructure:"videoIds"`
	CurrentIndex *int     `mapstructure:"currentIndex"`
	CurrentTime  float64  `mapstructure:"currentTime"`
	CTT          string   `mapstructure:"ctt"`
	Params       string   `mapstructure:"params"`
}

// DecodePlaylistUpdate decodes a setPlaylist or updatePlaylist payload.
// A missing currentIndex becomes -1.
func DecodePlaylistUpdate(m Message) (player.PlaylistUpdate, error) {
	var p playlistPayload
	if err := Decode(m.Payload, &p); err != nil {
		return player.PlaylistUpdate{}, fmt.Errorf("%s: %w", m.Name, err)
	}

	ids := make([]string, 0, len(p.VideoIDs))
	for _, id := range p.VideoIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}

	idx := -1
	if p.CurrentIndex != nil {
		idx = *p.CurrentIndex
	}

	return player.PlaylistUpdate{
		Set:          m.Name == SetPlaylist,
		ListID:       p.ListID,
		VideoID:      p.VideoID,
		VideoIDs:     ids,
		CurrentIndex: idx,
		CurrentTime:  secondsToDuration(p.CurrentTime),
		CTT:          p.CTT,
		Params:       p.Params,
	}, nil
}

type volumePayload struct {
	Volume *int  `mapstructure:"volume"`
	Muted  *bool `mapstructure:"muted"`
}

// DecodeVolume decodes a setVolume payload. When muted is absent the current
// mute state is kept.
func DecodeVolume(m Message, current player.Volume) (player.Volume, error) {
	var p volumePayload
	if err := Decode(m.Payload, &p); err != nil {
		return player.Volume{}, fmt.Errorf("%s: %w", m.Name, err)
	}
	if p.Volume == nil {
		return player.Volume{}, fmt.Errorf("%s: %w: missing volume", m.Name, ErrInvalidPayload)
	}

	v := player.Volume{Level: *p.Volume, Muted: current.Muted}
	if p.Muted != nil {
		v.Muted = *p.Muted
	}
	return v, nil
}

type seekPayload struct {
	NewTime *float64 `mapstructure:"newTime"`
}

// DecodeSeek decodes a seekTo payload.
func DecodeSeek(m Message) (time.Duration, error) {
	var p seekPayload
	if err := Decode(m.Payload, &p); err != nil {
		return 0, fmt.Errorf("%s: %w", m.Name, err)
	}
	if p.NewTime == nil {
		return 0, fmt.Errorf("%s: %w: missing newTime", m.Name, ErrInvalidPayload)
	}
	return secondsToDuration(*p.NewTime), nil
}

type autoplayPayload struct {
	AutoplayMode string `mapstructure:"autoplayMode"`
}

// DecodeAutoplayMode decodes a setAutoplayMode payload.
func DecodeAutoplayMode(m Message) (player.AutoplayMode, error) {
	var p autoplayPayload
	if err := Decode(m.Payload, &p); err != nil {
		return "", fmt.Errorf("%s: %w", m.Name, err)
	}
	mode, ok := player.ParseAutoplayMode(p.AutoplayMode)
	if !ok {
		return "", fmt.Errorf("%s: %w: unknown autoplay mode %q", m.Name, ErrInvalidPayload, p.AutoplayMode)
	}
	return mode, nil
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
