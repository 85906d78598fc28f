package app

import (
	"ytcr.app/receiver/player"
	"ytcr.app/receiver/sender"
)

// roster is the part of sender.Registry the negotiator reads.
type roster interface {
	Len() int
	AllSupport(c sender.Capability) bool
	AnyLacks(c sender.Capability) bool
}

// autoplayNegotiator decides the device-wide autoplay mode as senders come
// and go. beforeOverride holds the mode that a capability conflict forced to
// UNSUPPORTED; it is empty whenever no conflict is in force.
type autoplayNegotiator struct {
	onConnect      player.AutoplayMode
	beforeOverride player.AutoplayMode
}

// connect returns the mode to apply once s joins existing. current is the
// mode in force before s joined; existing does not hold s yet.
func (n *autoplayNegotiator) connect(current player.AutoplayMode, existing roster, s sender.Sender) player.AutoplayMode {
	if existing.Len() == 0 {
		n.beforeOverride = ""
		if !s.SupportsAutoplay() {
			return player.AutoplayUnsupported
		}
		return n.onConnect
	}

	if !s.SupportsAutoplay() || existing.AnyLacks(sender.CapAutoplay) {
		if current != player.AutoplayUnsupported {
			n.beforeOverride = current
		}
		return player.AutoplayUnsupported
	}

	n.beforeOverride = ""
	return current
}

// disconnect returns the mode to restore after a sender left, if any.
// remaining no longer holds the sender.
func (n *autoplayNegotiator) disconnect(current player.AutoplayMode, remaining roster) (player.AutoplayMode, bool) {
	if remaining.Len() == 0 {
		n.beforeOverride = ""
		return "", false
	}
	if current != player.AutoplayUnsupported || !remaining.AllSupport(sender.CapAutoplay) {
		return "", false
	}

	mode := n.beforeOverride
	if mode == "" {
		mode = n.onConnect
	}
	n.beforeOverride = ""
	return mode, true
}
