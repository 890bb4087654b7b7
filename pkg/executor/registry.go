package executor

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"mbt_agent/pkg/logging"
	"mbt_agent/pkg/models"
)

// Outcome 动作执行结果
type Outcome struct {
	Status models.CommandStatus
	Result string
}

// Success 成功结果
func Success(result string) Outcome {
	return Outcome{Status: models.StatusSuccess, Result: result}
}

// Fail 失败结果
func Fail(result string) Outcome {
	return Outcome{Status: models.StatusFail, Result: result}
}

// Error 错误结果
func Error(result string) Outcome {
	return Outcome{Status: models.StatusError, Result: result}
}

// HandlerFunc 动作处理函数
type HandlerFunc func(ctx context.Context, action models.Action) Outcome

// Registry 动作注册表
type Registry struct {
	handlers map[string]HandlerFunc
	mu       sync.RWMutex
	log      logging.Logger
}

// NewRegistry 创建新的动作注册表
func NewRegistry(log logging.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
		log:      log,
	}
}

// Register 注册动作处理函数，同名覆盖
func (r *Registry) Register(name string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Get 获取动作处理函数
func (r *Registry) Get(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, exists := r.handlers[name]
	return fn, exists
}

// List 列出所有已注册的动作
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute 解析并执行服务器下发的动作
func (r *Registry) Execute(ctx context.Context, raw string) (status models.CommandStatus, result string) {
	action := models.ParseAction(raw)
	log := r.log.WithField("action", action.Name)

	fn, exists := r.Get(action.Name)
	if !exists {
		log.Warn("no handler registered")
		return models.StatusError, fmt.Sprintf("action '%s' not found", action.Name)
	}

	defer func() {
		if p := recover(); p != nil {
			log.Errorf("handler panic: %v", p)
			status, result = models.StatusError, fmt.Sprintf("panic: %v", p)
		}
	}()

	log.Debugf("executing %s", action.Raw)
	out := fn(ctx, action)
	if !out.Status.Valid() || out.Status == models.StatusUnset {
		out.Status = models.StatusError
	}

	if out.Status == models.StatusSuccess {
		log.Infof("action completed: %s", out.Result)
	} else {
		log.WithField("status", out.Status).Warnf("action failed: %s", out.Result)
	}
	return out.Status, out.Result
}

// RegisterBuiltins 注册内置动作
func (r *Registry) RegisterBuiltins() {
	r.Register("launchAUT", LaunchAUT)
	r.Register("sleep", Sleep)
	r.Register("log", r.logAction)
}

// LaunchAUT 未绑定设备命令时确认启动被测应用
func LaunchAUT(ctx context.Context, action models.Action) Outcome {
	return Success("launched " + action.Arg(0, "AUT"))
}

// Sleep 等待指定毫秒数
func Sleep(ctx context.Context, action models.Action) Outcome {
	ms, err := strconv.Atoi(action.Arg(0, "0"))
	if err != nil || ms < 0 {
		return Error(fmt.Sprintf("invalid duration '%s'", action.Arg(0, "")))
	}

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return Success(fmt.Sprintf("slept %dms", ms))
	case <-ctx.Done():
		return Error(ctx.Err().Error())
	}
}

func (r *Registry) logAction(ctx context.Context, action models.Action) Outcome {
	msg := strings.Join(action.Args, ", ")
	r.log.Info(msg)
	return Success(msg)
}
