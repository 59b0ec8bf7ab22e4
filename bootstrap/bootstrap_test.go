package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapDefaults(t *testing.T) {
	b := New("ocas-test", "0.0.1")
	require.NoError(t, b.Initialize(""))
	require.NotNil(t, b.Logger)
	assert.Equal(t, "0.0.1", b.Config.Version)

	m := b.SetupMetrics()
	require.NotNil(t, m)
	assert.NotNil(t, m.BuildInfo)

	b.SetupTracing(context.Background())
	b.Close()
	assert.Empty(t, b.cleanups)
}

func TestBootstrapMissingConfig(t *testing.T) {
	b := New("ocas-test", "0.0.1")
	require.Error(t, b.Initialize(t.TempDir()+"/absent.toml"))
}

func TestSignalContext(t *testing.T) {
	b := New("ocas-test", "0.0.1")
	ctx, stop := b.SignalContext(context.Background())
	stop()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
