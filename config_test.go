package migwasm

import (
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRuntimeConfigWithMethodsReturnCopies(t *testing.T) {
	base := NewRuntimeConfig()
	derived := base.WithDispatchLimit(42).WithImageDir("/tmp/images").WithCheckpointSignal(syscall.SIGINT).WithRestore(true)

	require.Equal(t, uint64(0), base.dispatchLimit, "WithDispatchLimit must not mutate the receiver")
	require.Equal(t, uint64(42), derived.dispatchLimit)
	require.Equal(t, "", base.imageDir)
	require.Equal(t, "/tmp/images", derived.imageDir)
	require.False(t, base.restore)
	require.True(t, derived.restore)
	require.Nil(t, base.checkpointSignal)
	require.Equal(t, os.Signal(syscall.SIGINT), derived.checkpointSignal)
}

func TestNewRuntimeConfigDefaults(t *testing.T) {
	cfg := NewRuntimeConfig()
	require.NotNil(t, cfg.ctx)
	require.NotNil(t, cfg.log)
	require.Zero(t, cfg.dispatchLimit)
	require.Nil(t, cfg.checkpointSignal)
}

func TestWithContextNilFallsBackToBackground(t *testing.T) {
	cfg := NewRuntimeConfig().WithContext(nil)
	require.NotNil(t, cfg.ctx)
}
