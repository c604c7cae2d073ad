package service_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forge3d/assetsync/internal/service"
)

func TestLaunchArgs(t *testing.T) {
	t.Parallel()

	cfg := service.LaunchConfig{
		Binary:     "/opt/blender/blender",
		Script:     "/opt/assetsync/worker.py",
		Catalog:    "/var/lib/assetsync/catalog.json",
		Categories: "/var/lib/assetsync/categories.json",
	}
	require.Equal(t, []string{
		"--background",
		"--factory-startup",
		"--python", "/opt/assetsync/worker.py",
		"--",
		"/var/lib/assetsync/catalog.json",
		"/var/lib/assetsync/categories.json",
	}, cfg.LaunchArgs())
}

func TestLaunchMissingScript(t *testing.T) {
	t.Parallel()

	_, err := service.Launch(context.Background(), service.LaunchConfig{
		Binary: "blender",
		Script: filepath.Join(t.TempDir(), "missing-worker.py"),
	})
	require.Error(t, err)

	var le *service.LaunchError
	require.ErrorAs(t, err, &le)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSupervisorReapsExitedWorker(t *testing.T) {
	t.Parallel()

	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("sh not found: %v", err)
	}

	script := filepath.Join(t.TempDir(), "worker.py")
	require.NoError(t, os.WriteFile(script, []byte("pass\n"), 0o600))

	// sh rejects the host flags and exits immediately, exercising launch,
	// liveness tracking and reaping with a real process.
	sup, err := service.Launch(context.Background(), service.LaunchConfig{
		Binary:        sh,
		Script:        script,
		ShutdownGrace: 2 * time.Second,
	})
	require.NoError(t, err)

	require.NotNil(t, sup.Protocol())
	require.NotNil(t, sup.Input())

	require.Eventually(t, func() bool { return !sup.Alive() },
		5*time.Second, 20*time.Millisecond)

	require.NoError(t, sup.Shutdown(context.Background()))
	state := sup.ExitState()
	require.NotNil(t, state)
	require.False(t, state.Success())
}

func TestSupervisorShutdownCancelledContext(t *testing.T) {
	t.Parallel()

	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("sh not found: %v", err)
	}

	script := filepath.Join(t.TempDir(), "worker.py")
	require.NoError(t, os.WriteFile(script, []byte("pass\n"), 0o600))

	// A long grace plus an already cancelled context takes the kill
	// branch without waiting; Shutdown must still reap and return.
	sup, err := service.Launch(context.Background(), service.LaunchConfig{
		Binary:        sh,
		Script:        script,
		ShutdownGrace: 10 * time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, sup.Shutdown(ctx))
	require.False(t, sup.Alive())
	require.NotNil(t, sup.ExitState())
}
