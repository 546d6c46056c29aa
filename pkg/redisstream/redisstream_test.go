package redisstream

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSettingsWithDefaults(t *testing.T) {
	s := Settings{Enabled: true, Topic: "custom"}.WithDefaults()
	require.Equal(t, DefaultAddr, s.Addr)
	require.Equal(t, "custom", s.Topic)
	require.Equal(t, DefaultGroup, s.Group)
	require.Equal(t, DefaultConsumer, s.Consumer)
}

func TestBuildPublisherDisabled(t *testing.T) {
	pub, err := BuildPublisher(Settings{Addr: "localhost:1"})
	require.NoError(t, err)
	require.Nil(t, pub)
}

func TestWatermillLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewWatermillLogger(zerolog.New(buf).Level(zerolog.DebugLevel))

	l.With(watermill.LogFields{"topic": "deskhand.replies"}).
		Error("publish failed", errors.New("connection refused"), watermill.LogFields{"attempt": 2})
	l.Info("subscribed", nil)
	l.Trace("dropped", nil)

	out := buf.String()
	require.Contains(t, out, `"component":"watermill"`)
	require.Contains(t, out, `"topic":"deskhand.replies"`)
	require.Contains(t, out, `"error":"connection refused"`)
	require.Contains(t, out, `"level":"debug"`)
	require.Contains(t, out, `"message":"subscribed"`)
	require.NotContains(t, out, `"level":"info"`)
	require.NotContains(t, out, "dropped")
}
