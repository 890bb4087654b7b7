package executor

import (
	"context"
	"testing"
	"time"

	"mbt_agent/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalShell(t *testing.T) {
	d := &LocalDispatcher{}

	resp, err := d.Dispatch(context.Background(), &models.Command{ID: "c1", Type: "shell", Command: "echo hello"})
	require.NoError(t, err)
	assert.Equal(t, "c1", resp.ID)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "hello", resp.Result)

	resp, err = d.Dispatch(context.Background(), &models.Command{ID: "c2", Type: "shell", Command: "echo", Args: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "a b", resp.Result)
}

func TestLocalShellFailure(t *testing.T) {
	d := &LocalDispatcher{}

	resp, err := d.Dispatch(context.Background(), &models.Command{ID: "c1", Type: "shell", Command: "exit 3"})
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotEmpty(t, resp.Error)

	resp, _ = d.Dispatch(context.Background(), &models.Command{ID: "c2", Type: "shell"})
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "empty command", resp.Error)
}

func TestLocalShellTimeout(t *testing.T) {
	d := &LocalDispatcher{}

	start := time.Now()
	resp, err := d.Dispatch(context.Background(), &models.Command{ID: "c1", Type: "shell", Command: "sleep 5", Timeout: 1})
	require.NoError(t, err)
	assert.Equal(t, "timeout", resp.Status)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestLocalAdbCommands(t *testing.T) {
	// echo 代替 adb，输出即为参数
	d := &LocalDispatcher{ADB: "echo", Serial: "emulator-5554"}

	resp, _ := d.Dispatch(context.Background(), &models.Command{Type: "tap", Args: []string{"10", "20"}})
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "-s emulator-5554 shell input tap 10 20", resp.Result)

	resp, _ = d.Dispatch(context.Background(), &models.Command{Type: "input", Text: "hello"})
	assert.Equal(t, "-s emulator-5554 shell input text hello", resp.Result)

	resp, _ = d.Dispatch(context.Background(), &models.Command{Type: "tap", Args: []string{"0", "x"}})
	assert.Equal(t, "error", resp.Status)

	resp, _ = d.Dispatch(context.Background(), &models.Command{Type: "input"})
	assert.Equal(t, "error", resp.Status)
}

func TestLocalWaitAndUnknown(t *testing.T) {
	d := &LocalDispatcher{}

	resp, _ := d.Dispatch(context.Background(), &models.Command{Type: "wait", Args: []string{"0"}})
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "waited 0 seconds", resp.Result)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, _ = d.Dispatch(ctx, &models.Command{Type: "wait", Timeout: 30})
	assert.Equal(t, "error", resp.Status)

	resp, _ = d.Dispatch(context.Background(), &models.Command{Type: "screenshot"})
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "screenshot")
}
