package executor

import (
	"context"
	"testing"
	"time"

	"mbt_agent/pkg/logging"
	"mbt_agent/pkg/models"

	"github.com/stretchr/testify/assert"
)

func newTestRegistry() *Registry {
	reg := NewRegistry(logging.Discard())
	reg.RegisterBuiltins()
	return reg
}

func TestRegistryBuiltins(t *testing.T) {
	reg := newTestRegistry()
	assert.Equal(t, []string{"launchAUT", "log", "sleep"}, reg.List())

	status, result := reg.Execute(context.Background(), "launchAUT(com.example.app)")
	assert.Equal(t, models.StatusSuccess, status)
	assert.Equal(t, "launched com.example.app", result)

	status, result = reg.Execute(context.Background(), "log(hello, world)")
	assert.Equal(t, models.StatusSuccess, status)
	assert.Equal(t, "hello, world", result)

	status, _ = reg.Execute(context.Background(), "sleep(1)")
	assert.Equal(t, models.StatusSuccess, status)
}

func TestRegistryUnknownAction(t *testing.T) {
	reg := newTestRegistry()

	status, result := reg.Execute(context.Background(), "swipe(left)")
	assert.Equal(t, models.StatusError, status)
	assert.Contains(t, result, "swipe")
}

func TestRegistryOverride(t *testing.T) {
	reg := newTestRegistry()
	reg.Register("launchAUT", func(ctx context.Context, a models.Action) Outcome {
		return Fail("not installed: " + a.Arg(0, ""))
	})

	status, result := reg.Execute(context.Background(), "launchAUT(x)")
	assert.Equal(t, models.StatusFail, status)
	assert.Equal(t, "not installed: x", result)
}

func TestRegistryRecoversPanic(t *testing.T) {
	reg := newTestRegistry()
	reg.Register("boom", func(ctx context.Context, a models.Action) Outcome {
		panic("bad state")
	})

	status, result := reg.Execute(context.Background(), "boom()")
	assert.Equal(t, models.StatusError, status)
	assert.Equal(t, "panic: bad state", result)
}

func TestRegistryInvalidStatusBecomesError(t *testing.T) {
	reg := newTestRegistry()
	reg.Register("odd", func(ctx context.Context, a models.Action) Outcome {
		return Outcome{Result: "no status"}
	})

	status, result := reg.Execute(context.Background(), "odd")
	assert.Equal(t, models.StatusError, status)
	assert.Equal(t, "no status", result)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	out := Sleep(ctx, models.ParseAction("sleep(60000)"))
	assert.Equal(t, models.StatusError, out.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), out.Result)

	out = Sleep(context.Background(), models.ParseAction("sleep(abc)"))
	assert.Equal(t, models.StatusError, out.Status)
}
