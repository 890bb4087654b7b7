package agent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"mbt_agent/pkg/logging"
	"mbt_agent/pkg/models"
	"mbt_agent/pkg/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	mu      sync.Mutex
	actions []string
}

func (e *stubExecutor) Execute(ctx context.Context, action string) (models.CommandStatus, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions = append(e.actions, action)
	return models.StatusSuccess, "ok-" + models.ParseAction(action).Name
}

func (e *stubExecutor) executed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.actions...)
}

func newHTTPRunner(exec Executor) *Runner {
	s := newTestSession(transport.NewHTTPTransport(5 * time.Second))
	r := NewRunner(s, exec, logging.Discard())
	r.PollInterval = time.Millisecond
	return r
}

func TestRunnerEndToEnd(t *testing.T) {
	srv := newFakeServer("agent-42", "launchAUT(app)", "click(login)", "$exitAgent()")
	defer srv.Close()

	exec := &stubExecutor{}
	r := newHTTPRunner(exec)
	r.FetchSummary = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := r.Run(ctx, &models.ExecutionRequest{SvrURL: srv.URL, ModelName: "Demo"})
	require.NoError(t, err)

	assert.Equal(t, "agent-42", res.AgentID)
	assert.Equal(t, 2, res.Commands)
	assert.Equal(t, "passed=2 failed=0", res.Summary)
	assert.Equal(t, []string{"launchAUT(app)", "click(login)"}, exec.executed())

	polls := srv.pollLog()
	require.Len(t, polls, 3)
	assert.Equal(t, "", polls[0].Get("status"))
	assert.Equal(t, "success", polls[1].Get("status"))
	assert.Equal(t, "ok-launchAUT", polls[1].Get("result"))
	assert.Equal(t, "ok-click", polls[2].Get("result"))

	assert.Equal(t, []string{"exec", "regAgent", "nextCmd", "nextCmd", "nextCmd", "close", "summary"}, srv.actionLog())
	assert.False(t, r.Session().IsOpen())
}

func TestRunnerStopsAfterIdlePolls(t *testing.T) {
	srv := newFakeServer("agent-1")
	defer srv.Close()

	r := newHTTPRunner(&stubExecutor{})
	r.MaxIdlePolls = 3

	_, err := r.Run(context.Background(), &models.ExecutionRequest{SvrURL: srv.URL, ModelName: "Demo"})
	assert.Equal(t, ErrIdle, err)

	actions := strings.Join(srv.actionLog(), ",")
	assert.Equal(t, "exec,regAgent,nextCmd,nextCmd,nextCmd,stop,close", actions)
}

func TestRunnerWaitsPollIntervalBetweenIdlePolls(t *testing.T) {
	srv := newFakeServer("agent-1")
	defer srv.Close()

	r := newHTTPRunner(&stubExecutor{})
	r.PollInterval = 30 * time.Millisecond
	r.MaxIdlePolls = 4

	start := time.Now()
	_, err := r.Run(context.Background(), &models.ExecutionRequest{SvrURL: srv.URL, ModelName: "Demo"})
	assert.Equal(t, ErrIdle, err)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Len(t, srv.pollLog(), 4)
}

func TestRunnerCancelled(t *testing.T) {
	srv := newFakeServer("agent-1")
	defer srv.Close()

	r := newHTTPRunner(&stubExecutor{})
	r.PollInterval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, &models.ExecutionRequest{SvrURL: srv.URL, ModelName: "Demo"})
	assert.Equal(t, context.DeadlineExceeded, err)

	actions := srv.actionLog()
	require.GreaterOrEqual(t, len(actions), 2)
	assert.Equal(t, []string{"stop", "close"}, actions[len(actions)-2:])
}

func TestRunnerStartFailure(t *testing.T) {
	srv := newFakeServer("agent-1")
	url := srv.URL
	srv.Close()

	r := newHTTPRunner(&stubExecutor{})
	_, err := r.Run(context.Background(), &models.ExecutionRequest{SvrURL: url, ModelName: "Demo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start model")
}
