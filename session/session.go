// Package session defines the message channel between the receiver app and
// its senders, and a websocket implementation of it for local use.
package session

import (
	"context"
	"errors"

	"ytcr.app/receiver/messages"
)

var (
	ErrNotStarted = errors.New("session: not started")
	ErrNoClient   = errors.New("session: no client connected")
)

// Listener receives what the channel emits. Callbacks must not block.
type Listener interface {
	OnMessages(batch []messages.Message)
	OnTerminate(err error)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Messages  func(batch []messages.Message)
	Terminate func(err error)
}

// OnMessages implements Listener.
func (l ListenerFuncs) OnMessages(batch []messages.Message) {
	if l.Messages != nil {
		l.Messages(batch)
	}
}

// OnTerminate implements Listener.
func (l ListenerFuncs) OnTerminate(err error) {
	if l.Terminate != nil {
		l.Terminate(err)
	}
}

// PairingCodeRequestService hands out codes a user types into a sender to
// pair manually.
type PairingCodeRequestService interface {
	Request(ctx context.Context) (string, error)
}

// Channel is the receiver side of a lounge session.
type Channel interface {
	Begin(ctx context.Context) error
	End(ctx context.Context) error
	RegisterPairingCode(ctx context.Context, code string) error
	Send(ctx context.Context, msgs []messages.Outbound) error
	// SetListener replaces the listener; nil detaches it.
	SetListener(l Listener)
	PairingCodeRequestService() PairingCodeRequestService
}
