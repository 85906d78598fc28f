package sender

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tt := []struct {
		name     string
		payload  map[string]any
		id       string
		autoplay bool
		device   Device
	}{
		{
			`Comma separated capabilities`,
			map[string]any{"id": "s1", "name": "Phone", "capabilities": "que,atp,mus"},
			"s1",
			true,
			Device{},
		},
		{
			`List capabilities without autoplay`,
			map[string]any{"id": "s2", "name": "Tablet", "capabilities": []any{"que", "dsdtr"}},
			"s2",
			false,
			Device{},
		},
		{
			`JSON encoded device`,
			map[string]any{"id": "s3", "device": `{"brand":"Google","model":"Pixel","os":"Android","type":"REMOTE_CONTROL"}`},
			"s3",
			false,
			Device{Brand: "Google", Model: "Pixel", OS: "Android", DeviceType: "REMOTE_CONTROL"},
		},
		{
			`Object device`,
			map[string]any{"id": " s4 ", "capabilities": "atp", "device": map[string]any{"brand": "Apple"}},
			"s4",
			true,
			Device{Brand: "Apple"},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Parse(tc.payload)
			require.NoError(t, err)
			require.Equal(t, tc.id, s.ID)
			require.Equal(t, tc.autoplay, s.SupportsAutoplay())
			require.Equal(t, tc.device, s.Device)
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(nil)
	require.True(t, errors.Is(err, ErrInvalidPayload))

	_, err = Parse(map[string]any{"name": "nobody"})
	require.ErrorIs(t, err, ErrMissingID)

	_, err = Parse(map[string]any{"id": "x", "device": "{not json"})
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Parse(map[string]any{"id": "x", "device": 42})
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Parse(map[string]any{"id": map[string]any{"nested": true}})
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.False(t, r.AllSupport(CapAutoplay))
	require.False(t, r.AnyLacks(CapAutoplay))

	a := Sender{ID: "a", Capabilities: []Capability{CapAutoplay}}
	b := Sender{ID: "b"}

	require.True(t, r.Add(a))
	require.False(t, r.Add(Sender{ID: "a", Name: "dup"}))
	require.Equal(t, 1, r.Len())
	require.True(t, r.AllSupport(CapAutoplay))

	require.True(t, r.Add(b))
	require.False(t, r.AllSupport(CapAutoplay))
	require.True(t, r.AnyLacks(CapAutoplay))
	require.Equal(t, []Sender{a, b}, r.All())

	got, ok := r.Remove("b")
	require.True(t, ok)
	require.Equal(t, b, got)
	_, ok = r.Remove("b")
	require.False(t, ok)
	require.True(t, r.Has("a"))

	all := r.All()
	all[0].Name = "mutated"
	require.Empty(t, r.All()[0].Name)

	require.Equal(t, []Sender{a}, r.Clear())
	require.Zero(t, r.Len())
}
