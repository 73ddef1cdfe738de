package mock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailNextPublishesOnScopesToSubject(t *testing.T) {
	bus := NewBus()
	bus.FailNextPublishesOn("signals.out", errors.New("nats timeout"), errors.New("nats timeout"))

	// Other subjects keep publishing while the injected errors wait.
	require.NoError(t, bus.Publish("md.binance.stream", []byte("tick")))
	require.NoError(t, bus.Publish("md.binance.stream", []byte("tick")))

	assert.Error(t, bus.Publish("signals.out", []byte("sig")))
	assert.Error(t, bus.Publish("signals.out", []byte("sig")))
	require.NoError(t, bus.Publish("signals.out", []byte("sig")))

	assert.Equal(t, 2, bus.PublishedCount("md.binance.stream"))
	assert.Equal(t, 1, bus.PublishedCount("signals.out"))
}
