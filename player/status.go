package player

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Status is the transport state of the player, using the lounge numeric codes.
type Status int

const (
	StatusIdle    Status = -1
	StatusPlaying Status = 1
	StatusPaused  Status = 2
	StatusLoading Status = 3
	StatusStopped Status = 4
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "IDLE"
	case StatusPlaying:
		return "PLAYING"
	case StatusPaused:
		return "PAUSED"
	case StatusLoading:
		return "LOADING"
	case StatusStopped:
		return "STOPPED"
	}
	return "UNKNOWN(" + strconv.Itoa(int(s)) + ")"
}

// AutoplayMode is device-wide, never per sender.
type AutoplayMode string

const (
	AutoplayEnabled     AutoplayMode = "ENABLED"
	AutoplayDisabled    AutoplayMode = "DISABLED"
	AutoplayUnsupported AutoplayMode = "UNSUPPORTED"
)

// ParseAutoplayMode returns false for anything that is not one of the three modes.
func ParseAutoplayMode(s string) (AutoplayMode, bool) {
	switch m := AutoplayMode(s); m {
	case AutoplayEnabled, AutoplayDisabled, AutoplayUnsupported:
		return m, true
	}
	return "", false
}

// Volume represents the player volume. Level is 0 to 100.
type Volume struct {
	Level int
	Muted bool
}

// NavInfo is derived from the queue position.
type NavInfo struct {
	HasNext     bool
	HasPrevious bool
}

// Snapshot is an immutable view of the player at one point in time.
// Two snapshots are compared with ==.
type Snapshot struct {
	Status         Status
	Position       time.Duration
	Duration       time.Duration
	Volume         Volume
	PlaylistID     string
	CurrentItemID  string
	CurrentIndex   int
	AutoplayItemID string
	CPN            string
}

// StateEvent is emitted by a Player whenever its state changes.
// Previous is nil for the first event after a reset.
type StateEvent struct {
	AID      AID
	Current  Snapshot
	Previous *Snapshot
}

// AID is the sequence id of an inbound message. It is echoed back on
// responses the message directly solicited. The zero value means absent.
type AID struct {
	ID    int
	Valid bool
}

// NewAID returns a present AID.
func NewAID(id int) AID {
	return AID{ID: id, Valid: true}
}

func (a AID) String() string {
	if !a.Valid {
		return "null"
	}
	return strconv.Itoa(a.ID)
}

// MarshalJSON encodes an absent AID as null.
func (a AID) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(a.ID)), nil
}

// UnmarshalJSON accepts null, a number or a numeric string.
func (a *AID) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch t := v.(type) {
	case nil:
		*a = AID{}
	case float64:
		*a = NewAID(int(t))
	case string:
		if t == "" {
			*a = AID{}
			return nil
		}
		n, err := strconv.Atoi(t)
		if err != nil {
			return err
		}
		*a = NewAID(n)
	default:
		return fmt.Errorf("AID: unexpected value %s", b)
	}
	return nil
}
