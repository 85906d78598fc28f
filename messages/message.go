// Package messages defines the lounge message envelope exchanged with senders,
// in both directions, and the typed payloads the receiver understands.
package messages

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"ytcr.app/receiver/player"
)

// Name identifies a message type on the wire.
type Name string

// Inbound message names.
const (
	RemoteConnected    Name = "remoteConnected"
	RemoteDisconnected Name = "remoteDisconnected"
	GetNowPlaying      Name = "getNowPlaying"
	LoungeStatus       Name = "loungeStatus"
	SetPlaylist        Name = "setPlaylist"
	UpdatePlaylist     Name = "updatePlaylist"
	Next               Name = "next"
	Previous           Name = "previous"
	Pause              Name = "pause"
	StopVideo          Name = "stopVideo"
	Play               Name = "play"
	SeekTo             Name = "seekTo"
	GetVolume          Name = "getVolume"
	SetVolume          Name = "setVolume"
	SetAutoplayMode    Name = "setAutoplayMode"
)

// Outbound message names.
const (
	NowPlayingName               Name = "nowPlaying"
	OnStateChangeName            Name = "onStateChange"
	OnVolumeChangedName          Name = "onVolumeChanged"
	OnHasPreviousNextChangedName Name = "onHasPreviousNextChanged"
	OnAutoplayModeChangedName    Name = "onAutoplayModeChanged"
	AutoplayUpNextName           Name = "autoplayUpNext"
	PairingCodeName              Name = "pairingCode"
)

// ErrEmptyBatch is returned by DecodeBatch for input with no messages.
var ErrEmptyBatch = errors.New("messages: empty batch")

// Message is an inbound lounge message.
type Message struct {
	AID     player.AID     `json:"AID"`
	Name    Name           `json:"name"`
	Payload map[string]any `json:"payload"`
}

// DecodeBatch parses a single message or an arbitrarily nested array of
// messages into a flat slice, preserving order. Elements are decoded one by
// one: a malformed element is skipped and reported in the returned error
// while its siblings are still returned. The slice is empty only when no
// element decoded.
func DecodeBatch(data []byte) ([]Message, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyBatch
	}

	var (
		out  []Message
		errs []error
	)
	pending := []json.RawMessage{data}
	for len(pending) > 0 {
		raw := bytes.TrimSpace(pending[0])
		pending = pending[1:]

		if len(raw) > 0 && raw[0] == '[' {
			var items []json.RawMessage
			if err := json.Unmarshal(raw, &items); err != nil {
				errs = append(errs, fmt.Errorf("decode batch: %w", err))
				continue
			}
			// Nested elements go first to keep document order.
			pending = append(items, pending...)
			continue
		}

		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			errs = append(errs, fmt.Errorf("decode message %d: %w", len(out)+len(errs), err))
			continue
		}
		out = append(out, m)
	}

	err := errors.Join(errs...)
	if len(out) == 0 && err == nil {
		return nil, ErrEmptyBatch
	}
	return out, err
}
