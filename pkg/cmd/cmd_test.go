package cmd

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence_MemoryBackends(t *testing.T) {
	logger := slog.Default()

	for _, url := range []string{"", "memory://"} {
		p, err := NewPersistence(t.Context(), logger, url)
		require.NoError(t, err, "url %q", url)

		assert.NoError(t, p.HealthCheck(t.Context()))
		assert.NoError(t, p.Close(t.Context()))
	}
}

func TestNewPersistence_UnsupportedScheme(t *testing.T) {
	_, err := NewPersistence(t.Context(), slog.Default(), "mysql://localhost/flow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database URL")
}

func TestNewEventBus_GoChannel(t *testing.T) {
	for _, provider := range []string{"", "gochannel"} {
		bus, err := NewEventBus(provider, "", slog.Default())
		require.NoError(t, err, "provider %q", provider)

		assert.NoError(t, bus.Close())
	}
}

func TestNewEventBus_UnsupportedProvider(t *testing.T) {
	_, err := NewEventBus("carrier-pigeon", "", slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported event bus provider")
}

func TestNewCapabilities(t *testing.T) {
	caps := NewCapabilities(slog.Default())

	assert.NotNil(t, caps.Records)
	assert.NotNil(t, caps.Notifier)
	assert.NotNil(t, caps.Tasks)
	assert.NotNil(t, caps.Webhooks)
}
