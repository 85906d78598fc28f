package app

import (
	"context"

	"github.com/pkg/errors"

	"ytcr.app/receiver/messages"
	"ytcr.app/receiver/player"
	"ytcr.app/receiver/sender"
	"ytcr.app/receiver/statediff"
)

// handleBatch runs every message of an inbound batch in order. Replies are
// collected and sent together once the batch is done. A failing message does
// not stop the rest.
func (a *App) handleBatch(ctx context.Context, batch []messages.Message) {
	var out []messages.Outbound
	for _, m := range batch {
		a.Log().Debug().Str("Method", "handleBatch").Str("AID", m.AID.String()).
			Str("Name", string(m.Name)).Msg("incoming message")

		msgs, err := a.handleMessage(ctx, m)
		out = append(out, msgs...)
		if err != nil {
			a.reportError(err)
		}
	}

	if len(out) == 0 {
		return
	}
	if err := a.batcher.Send(ctx, out); err != nil {
		a.Log().Warn().Str("Method", "handleBatch").Err(err).Msg("failed to send replies")
	}
}

func (a *App) handleMessage(ctx context.Context, m messages.Message) ([]messages.Outbound, error) {
	var (
		out []messages.Outbound
		err error
	)

	switch m.Name {
	case messages.RemoteConnected:
		return a.handleConnect(ctx, m)
	case messages.RemoteDisconnected:
		return a.handleDisconnect(ctx, m)
	case messages.GetNowPlaying:
		var snap player.Snapshot
		if snap, err = a.player.State(ctx); err == nil {
			out = append(out, messages.NowPlaying(m.AID, snap))
		}
	case messages.LoungeStatus:
		out = append(out,
			messages.OnHasPreviousNextChanged(m.AID, a.player.NavInfo()),
			messages.OnAutoplayModeChanged(m.AID, a.player.AutoplayMode()))
	case messages.SetPlaylist, messages.UpdatePlaylist:
		return a.handlePlaylist(ctx, m)
	case messages.Next:
		err = a.player.Next(ctx, m.AID)
	case messages.Previous:
		err = a.player.Previous(ctx, m.AID)
	case messages.Pause:
		err = a.player.Pause(ctx, m.AID)
	case messages.StopVideo:
		err = a.player.Stop(ctx, m.AID)
	case messages.Play:
		err = a.player.Resume(ctx, m.AID)
	case messages.SeekTo:
		pos, derr := messages.DecodeSeek(m)
		if derr != nil {
			return nil, derr
		}
		err = a.player.Seek(ctx, pos)
	case messages.GetVolume:
		var v player.Volume
		if v, err = a.player.Volume(ctx); err == nil {
			out = append(out, messages.OnVolumeChanged(m.AID, v, false))
		}
	case messages.SetVolume:
		err = a.handleSetVolume(ctx, m)
	case messages.SetAutoplayMode:
		mode, derr := messages.DecodeAutoplayMode(m)
		if derr != nil {
			a.Log().Warn().Str("Method", "handleMessage").Err(derr).Msg("ignoring autoplay mode")
			return nil, nil
		}
		return a.applyAutoplayMode(ctx, m.AID, mode)
	default:
		a.Log().Debug().Str("Method", "handleMessage").Str("Name", string(m.Name)).Msg("message not handled")
		return nil, nil
	}

	if err != nil {
		return out, errors.Wrapf(err, "failed to handle '%s'", m.Name)
	}
	return out, nil
}

func (a *App) handleConnect(ctx context.Context, m messages.Message) ([]messages.Outbound, error) {
	s, err := sender.Parse(m.Payload)
	if err != nil {
		return nil, &SenderConnectionError{Msg: "failed to register connected sender", Action: ActionConnect, Err: err}
	}
	if a.roster.Has(s.ID) {
		a.Log().Debug().Str("Method", "handleConnect").Str("Sender", s.String()).Msg("sender already connected")
		return nil, nil
	}

	a.mu.Lock()
	mode := a.autoplay.connect(a.player.AutoplayMode(), a.roster, s)
	a.mu.Unlock()

	out, err := a.applyAutoplayMode(ctx, m.AID, mode)
	if err != nil {
		a.reportError(err)
	}

	snap, err := a.player.State(ctx)
	if err != nil {
		err = errors.Wrap(err, "failed to read player state")
	} else {
		out = append(out, messages.NowPlaying(m.AID, snap), messages.OnStateChange(m.AID, snap))
	}

	a.roster.Add(s)
	a.Log().Info().Str("Method", "handleConnect").Str("Sender", s.String()).
		Str("Autoplay", string(mode)).Msg("sender connected")
	a.notify(func() { a.events.senderConnect.emit(s) })

	return out, err
}

func (a *App) handleDisconnect(ctx context.Context, m messages.Message) ([]messages.Outbound, error) {
	s, err := sender.Parse(m.Payload)
	if err != nil {
		return nil, &SenderConnectionError{Msg: "failed to unregister disconnected sender", Action: ActionDisconnect, Err: err}
	}
	removed, ok := a.roster.Remove(s.ID)
	if !ok {
		a.Log().Warn().Str("Method", "handleDisconnect").Str("Sender", s.String()).Msg("unknown sender disconnected")
		return nil, nil
	}

	remaining := a.roster.Len()
	a.mu.Lock()
	mode, restore := a.autoplay.disconnect(a.player.AutoplayMode(), a.roster)
	a.mu.Unlock()

	var out []messages.Outbound
	switch {
	case remaining == 0:
		a.batcher.Cancel()
		err = errors.Wrap(a.player.Reset(ctx), "failed to reset player")
	case restore:
		out, err = a.applyAutoplayMode(ctx, m.AID, mode)
	}

	a.Log().Info().Str("Method", "handleDisconnect").Str("Sender", removed.String()).
		Int("Remaining", remaining).Msg("sender disconnected")
	a.notify(func() { a.events.senderDisconnect.emit(removed) })

	return out, err
}

func (a *App) handlePlaylist(ctx context.Context, m messages.Message) ([]messages.Outbound, error) {
	u, err := messages.DecodePlaylistUpdate(m)
	if err != nil {
		return nil, err
	}

	q := a.player.Queue()
	before := q.State()
	navBefore := a.player.NavInfo()
	if err := q.UpdateByMessage(ctx, u); err != nil {
		return nil, errors.Wrapf(err, "failed to update queue by '%s'", m.Name)
	}
	after := q.State()

	var out []messages.Outbound
	if before.AutoplayID() != after.AutoplayID() {
		out = append(out, messages.AutoplayUpNext(m.AID, after.AutoplayID()))
	}

	switch {
	case u.Set && (before.CurrentID() != after.CurrentID() || before.CurrentIndex() != after.CurrentIndex()):
		if err := a.player.Stop(ctx, m.AID); err != nil {
			return out, errors.Wrap(err, "failed to stop before playing new item")
		}
		if after.Current == nil {
			return out, nil
		}
		if err := a.player.Play(ctx, *after.Current, u.CurrentTime, m.AID); err != nil {
			return out, errors.Wrapf(err, "failed to play '%s'", after.Current.ID)
		}
	case !u.Set && after.Current == nil:
		if err := a.player.Stop(ctx, m.AID); err != nil {
			return out, errors.Wrap(err, "failed to stop emptied queue")
		}
	default:
		snap, err := a.player.State(ctx)
		if err != nil {
			return out, errors.Wrap(err, "failed to read player state")
		}
		out = append(out, messages.NowPlaying(m.AID, snap))
		if navAfter := a.player.NavInfo(); navAfter != navBefore {
			out = append(out, messages.OnHasPreviousNextChanged(m.AID, navAfter))
		}
	}
	return out, nil
}

func (a *App) handleSetVolume(ctx context.Context, m messages.Message) error {
	current, err := a.player.Volume(ctx)
	if err != nil {
		return err
	}
	v, err := messages.DecodeVolume(m, current)
	if err != nil {
		return err
	}
	if v == current {
		a.Log().Debug().Str("Method", "handleSetVolume").Int("Level", v.Level).Msg("volume unchanged")
		return nil
	}
	return a.player.SetVolume(ctx, v, m.AID)
}

func (a *App) applyAutoplayMode(ctx context.Context, aid player.AID, mode player.AutoplayMode) ([]messages.Outbound, error) {
	q := a.player.Queue()
	before := q.State().AutoplayID()
	if err := q.SetAutoplayMode(ctx, mode); err != nil {
		return nil, errors.Wrapf(err, "failed to set autoplay mode %s", mode)
	}

	out := []messages.Outbound{messages.OnAutoplayModeChanged(aid, mode)}
	if after := q.State().AutoplayID(); after != before {
		out = append(out, messages.AutoplayUpNext(aid, after))
	}
	return out, nil
}

// handlePlayerState turns a player state event into outbound messages. With
// nobody connected the event is dropped. Unsolicited volume changes are
// coalesced so a dragged slider yields one message.
func (a *App) handlePlayerState(ctx context.Context, ev player.StateEvent) {
	if a.roster.Len() == 0 {
		a.Log().Debug().Str("Method", "handlePlayerState").Msg("no senders, state change dropped")
		return
	}

	msgs := statediff.Diff(ev, a.player.NavInfo())
	if len(msgs) == 0 {
		return
	}

	var opts []statediff.SendOption
	if statediff.Coalescible(ev.AID, msgs) {
		opts = append(opts, statediff.Coalesce(statediff.VolumeKey, a.volumeDebounce))
	}
	if err := a.batcher.Send(ctx, msgs, opts...); err != nil {
		a.Log().Warn().Str("Method", "handlePlayerState").Err(err).Msg("failed to send state change")
	}
}
