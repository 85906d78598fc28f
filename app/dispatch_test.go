package app

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"ytcr.app/receiver/messages"
	"ytcr.app/receiver/player"
	"ytcr.app/receiver/sender"
)

func TestConnectSendsInitialState(t *testing.T) {
	a, p, ch := newStartedApp(t)

	var joined []sender.Sender
	a.OnSenderConnect(func(s sender.Sender) { joined = append(joined, s) })

	m := connectMsg("s1", true)
	m.AID = player.NewAID(3)
	ch.deliver(m)
	settle(t, a)

	require.Equal(t, player.AutoplayEnabled, p.AutoplayMode())
	batches := ch.batches()
	require.Len(t, batches, 1)
	require.Equal(t, []messages.Name{
		messages.OnAutoplayModeChangedName,
		messages.NowPlayingName,
		messages.OnStateChangeName,
	}, names(batches[0]))
	require.Equal(t, player.NewAID(3), batches[0][0].AID)
	require.Len(t, joined, 1)
	require.Equal(t, "s1", joined[0].ID)

	// Reconnecting the same sender changes nothing.
	ch.deliver(connectMsg("s1", true))
	settle(t, a)
	require.Len(t, ch.batches(), 1)
	require.Len(t, joined, 1)
	require.Len(t, a.ConnectedSenders(), 1)
}

func TestConnectWithAutoplayOnConnectDisabled(t *testing.T) {
	a, p, ch := newStartedApp(t, WithAutoplayOnConnect(false))

	ch.deliver(connectMsg("s1", true))
	settle(t, a)
	require.Equal(t, player.AutoplayDisabled, p.AutoplayMode())

	a.EnableAutoplayOnConnect(true)
	ch.deliver(disconnectMsg("s1"), connectMsg("s2", true))
	settle(t, a)
	require.Equal(t, player.AutoplayEnabled, p.AutoplayMode())
}

func TestConnectErrors(t *testing.T) {
	a, _, ch := newStartedApp(t)

	var errs []error
	a.OnError(func(err error) { errs = append(errs, err) })

	ch.deliver(
		messages.Message{Name: messages.RemoteConnected, Payload: map[string]any{"name": "no id"}},
		messages.Message{Name: messages.RemoteDisconnected, Payload: map[string]any{"id": ""}},
		messages.Message{Name: messages.GetVolume},
	)
	settle(t, a)

	require.Len(t, errs, 2)
	var connErr *SenderConnectionError
	require.True(t, errors.As(errs[0], &connErr))
	require.Equal(t, ActionConnect, connErr.Action)
	require.ErrorIs(t, errs[0], sender.ErrMissingID)
	require.True(t, errors.As(errs[1], &connErr))
	require.Equal(t, ActionDisconnect, connErr.Action)
	require.Empty(t, a.ConnectedSenders())

	// The failing elements do not stop the rest of the batch.
	batches := ch.batches()
	require.Len(t, batches, 1)
	require.Equal(t, []messages.Name{messages.OnVolumeChangedName}, names(batches[0]))
}

func TestLastDisconnectResetsPlayer(t *testing.T) {
	a, p, ch := newStartedApp(t)

	ch.deliver(connectMsg("s1", true), connectMsg("s2", true))
	settle(t, a)

	ch.deliver(disconnectMsg("s1"))
	settle(t, a)
	require.NotContains(t, p.recorded(), "reset")

	ch.deliver(disconnectMsg("s2"), disconnectMsg("s2"))
	settle(t, a)
	count := 0
	for _, c := range p.recorded() {
		if c == "reset" {
			count++
		}
	}
	require.Equal(t, 1, count)

	// With nobody connected state changes are not reported.
	sent := len(ch.batches())
	p.emit(player.StateEvent{Current: player.Snapshot{Status: player.StatusPlaying}})
	settle(t, a)
	require.Len(t, ch.batches(), sent)
}

func TestSetPlaylistStopsThenPlays(t *testing.T) {
	a, p, ch := newStartedApp(t)
	p.queue.apply = func(u player.PlaylistUpdate) player.QueueState {
		v := &player.Video{ID: u.VideoIDs[u.CurrentIndex], Index: u.CurrentIndex, PlaylistID: u.ListID}
		return player.QueueState{Current: v}
	}

	ch.deliver(connectMsg("s1", true))
	ch.deliver(messages.Message{
		AID:  player.NewAID(7),
		Name: messages.SetPlaylist,
		Payload: map[string]any{
			"listId":       "PL1",
			"videoIds":     "a,b,c",
			"currentIndex": "1",
			"currentTime":  "12.5",
		},
	})
	settle(t, a)

	require.Equal(t, []string{"stop", "play:b@12.5s"}, p.recorded())

	// Same item again: nothing to restart, a nowPlaying reply instead.
	ch.deliver(messages.Message{
		Name:    messages.SetPlaylist,
		Payload: map[string]any{"listId": "PL1", "videoIds": "a,b,c", "currentIndex": 1},
	})
	settle(t, a)
	require.Equal(t, []string{"stop", "play:b@12.5s"}, p.recorded())
	batches := ch.batches()
	require.Equal(t, []messages.Name{messages.NowPlayingName}, names(batches[len(batches)-1]))
}

func TestUpdatePlaylistEmptiedStops(t *testing.T) {
	a, p, ch := newStartedApp(t)
	p.queue.state = player.QueueState{Current: &player.Video{ID: "a"}}
	p.queue.apply = func(player.PlaylistUpdate) player.QueueState { return player.QueueState{} }

	ch.deliver(messages.Message{Name: messages.UpdatePlaylist, Payload: map[string]any{"videoIds": ""}})
	settle(t, a)
	require.Equal(t, []string{"stop"}, p.recorded())
}

func TestPlaybackCommands(t *testing.T) {
	tt := []struct {
		name    string
		msg     messages.Message
		calls   []string
		replies []messages.Name
	}{
		{`Next`, messages.Message{Name: messages.Next}, []string{"next"}, nil},
		{`Previous`, messages.Message{Name: messages.Previous}, []string{"previous"}, nil},
		{`Pause`, messages.Message{Name: messages.Pause}, []string{"pause"}, nil},
		{`Play resumes`, messages.Message{Name: messages.Play}, []string{"resume"}, nil},
		{`Stop video`, messages.Message{Name: messages.StopVideo}, []string{"stop"}, nil},
		{
			`Seek`,
			messages.Message{Name: messages.SeekTo, Payload: map[string]any{"newTime": "90"}},
			[]string{"seek:1m30s"},
			nil,
		},
		{
			`Set volume`,
			messages.Message{Name: messages.SetVolume, Payload: map[string]any{"volume": "20"}},
			[]string{"volume:20"},
			nil,
		},
		{
			`Set volume to the current value`,
			messages.Message{Name: messages.SetVolume, Payload: map[string]any{"volume": 50, "muted": "false"}},
			nil,
			nil,
		},
		{
			`Get volume`,
			messages.Message{Name: messages.GetVolume},
			nil,
			[]messages.Name{messages.OnVolumeChangedName},
		},
		{
			`Get now playing`,
			messages.Message{Name: messages.GetNowPlaying},
			nil,
			[]messages.Name{messages.NowPlayingName},
		},
		{
			`Lounge status`,
			messages.Message{Name: messages.LoungeStatus},
			nil,
			[]messages.Name{messages.OnHasPreviousNextChangedName, messages.OnAutoplayModeChangedName},
		},
		{`Unknown message`, messages.Message{Name: "dpadCommand"}, nil, nil},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			a, p, ch := newStartedApp(t)
			ch.deliver(tc.msg)
			settle(t, a)

			require.Equal(t, tc.calls, p.recorded())
			batches := ch.batches()
			if tc.replies == nil {
				require.Empty(t, batches)
				return
			}
			require.Len(t, batches, 1)
			require.Equal(t, tc.replies, names(batches[0]))
		})
	}
}

func TestPlayerFailureIsReported(t *testing.T) {
	a, p, ch := newStartedApp(t)
	p.failOn["pause"] = errors.New("decoder gone")

	got := make(chan error, 1)
	a.OnError(func(err error) { got <- err })
	ch.deliver(messages.Message{Name: messages.Pause}, messages.Message{Name: messages.Next})
	settle(t, a)

	require.Equal(t, []string{"pause", "next"}, p.recorded())
	err := <-got
	require.Contains(t, err.Error(), "pause")
	require.EqualError(t, errors.Cause(err), "decoder gone")
}

func TestSetAutoplayMode(t *testing.T) {
	a, p, ch := newStartedApp(t)

	ch.deliver(messages.Message{Name: messages.SetAutoplayMode, Payload: map[string]any{"autoplayMode": "DISABLED"}})
	settle(t, a)
	require.Equal(t, player.AutoplayDisabled, p.AutoplayMode())

	ch.deliver(messages.Message{Name: messages.SetAutoplayMode, Payload: map[string]any{"autoplayMode": "SOMETIMES"}})
	settle(t, a)
	require.Equal(t, player.AutoplayDisabled, p.AutoplayMode())
	require.Len(t, ch.batches(), 1)
}

func TestStateChangeReporting(t *testing.T) {
	a, p, ch := newStartedApp(t)
	ch.deliver(connectMsg("s1", true))
	settle(t, a)

	prev := player.Snapshot{Status: player.StatusLoading, CurrentItemID: "a"}
	p.emit(player.StateEvent{
		AID:      player.NewAID(4),
		Current:  player.Snapshot{Status: player.StatusPlaying, CurrentItemID: "a"},
		Previous: &prev,
	})
	settle(t, a)

	batches := ch.batches()
	require.Len(t, batches, 2)
	require.Equal(t, []messages.Name{messages.OnStateChangeName}, names(batches[1]))
	require.Equal(t, player.NewAID(4), batches[1][0].AID)
}

func TestUnsolicitedVolumeIsDebounced(t *testing.T) {
	a, p, ch := newStartedApp(t, WithVolumeDebounce(50*time.Millisecond))
	ch.deliver(connectMsg("s1", true))
	settle(t, a)

	for i := 0; i < 5; i++ {
		prev := player.Snapshot{Volume: player.Volume{Level: 10 + i}}
		p.emit(player.StateEvent{
			Current:  player.Snapshot{Volume: player.Volume{Level: 11 + i}},
			Previous: &prev,
		})
	}
	settle(t, a)

	require.Eventually(t, func() bool { return len(ch.batches()) == 2 }, time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return len(ch.batches()) > 2 }, 150*time.Millisecond, 10*time.Millisecond)
	last := ch.batches()[1]
	require.Len(t, last, 1)
	require.Equal(t, "15", last[0].Payload["volume"])

	// A volume change a sender asked for goes out at once.
	prev := player.Snapshot{Volume: player.Volume{Level: 15}}
	p.emit(player.StateEvent{
		AID:      player.NewAID(9),
		Current:  player.Snapshot{Volume: player.Volume{Level: 30}},
		Previous: &prev,
	})
	settle(t, a)
	require.Len(t, ch.batches(), 3)
}

func TestPairingCodeRequestService(t *testing.T) {
	a := New(newFakePlayer(), &fakeChannel{})
	require.Nil(t, a.PairingCodeRequestService())
	require.NotEqual(t, a.PID(), New(newFakePlayer(), &fakeChannel{}).PID())
}
