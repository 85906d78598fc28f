package sender

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"ytcr.app/receiver/messages"
)

// Capability is a feature tag announced by a sender on connect.
type Capability string

// CapAutoplay is the lounge tag for autoplay support.
const CapAutoplay Capability = "atp"

var (
	ErrMissingID      = errors.New("sender: missing id")
	ErrInvalidPayload = errors.New("sender: invalid payload")
)

// Device describes the sender hardware, when announced.
type Device struct {
	Brand      string `mapstructure:"brand" json:"brand"`
	Model      string `mapstructure:"model" json:"model"`
	OS         string `mapstructure:"os" json:"os"`
	DeviceType string `mapstructure:"type" json:"type"`
}

// Sender is a connected remote control app.
type Sender struct {
	ID           string
	Name         string
	App          string
	ClientName   string
	Type         string
	Theme        string
	User         string
	Device       Device
	Capabilities []Capability
}

// Supports reports whether the sender announced capability c.
func (s Sender) Supports(c Capability) bool {
	return slices.Contains(s.Capabilities, c)
}

// SupportsAutoplay reports whether the sender can drive autoplay.
func (s Sender) SupportsAutoplay() bool {
	return s.Supports(CapAutoplay)
}

func (s Sender) String() string {
	name := s.Name
	if name == "" {
		name = s.ClientName
	}
	return fmt.Sprintf("%s (%s)", name, s.ID)
}

type rawSender struct {
	ID           string   `mapstructure:"id"`
	Name         string   `mapstructure:"name"`
	App          string   `mapstructure:"app"`
	ClientName   string   `mapstructure:"clientName"`
	Type         string   `mapstructure:"type"`
	Theme        string   `mapstructure:"theme"`
	User         string   `mapstructure:"user"`
	Device       any      `mapstructure:"device"`
	Capabilities []string `mapstructure:"capabilities"`
}

// Parse builds a Sender from an untrusted remoteConnected or
// remoteDisconnected payload.
func Parse(payload map[string]any) (Sender, error) {
	if payload == nil {
		return Sender{}, errors.Wrap(ErrInvalidPayload, "nil payload")
	}

	var raw rawSender
	if err := messages.Decode(payload, &raw); err != nil {
		return Sender{}, errors.Wrap(ErrInvalidPayload, err.Error())
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return Sender{}, ErrMissingID
	}

	s := Sender{
		ID:         id,
		Name:       raw.Name,
		App:        raw.App,
		ClientName: raw.ClientName,
		Type:       raw.Type,
		Theme:      raw.Theme,
		User:       raw.User,
	}

	for _, c := range raw.Capabilities {
		c = strings.TrimSpace(c)
		if c != "" {
			s.Capabilities = append(s.Capabilities, Capability(c))
		}
	}

	dev, err := parseDevice(raw.Device)
	if err != nil {
		return Sender{}, errors.Wrap(ErrInvalidPayload, err.Error())
	}
	s.Device = dev

	return s, nil
}

// The lounge sends device info as a JSON encoded string; some clients send
// an object instead.
func parseDevice(v any) (Device, error) {
	var d Device
	switch t := v.(type) {
	case nil:
		return d, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return d, nil
		}
		if err := json.Unmarshal([]byte(t), &d); err != nil {
			return d, fmt.Errorf("device: %w", err)
		}
	case map[string]any:
		if err := messages.Decode(t, &d); err != nil {
			return d, fmt.Errorf("device: %w", err)
		}
	default:
		return d, fmt.Errorf("device: unexpected type %T", v)
	}
	return d, nil
}
