package agent

import (
	"context"
	"time"

	"mbt_agent/pkg/logging"
	"mbt_agent/pkg/models"

	"github.com/pkg/errors"
)

const abortTimeout = 5 * time.Second

// ErrIdle 连续空轮询次数超过上限
var ErrIdle = errors.New("no command received within the idle poll limit")

// Executor 在本地执行远程命令
type Executor interface {
	Execute(ctx context.Context, action string) (models.CommandStatus, string)
}

// RunResult 一次完整执行的结果
type RunResult struct {
	AgentID  string `json:"agent_id"`
	Commands int    `json:"commands"`
	Summary  string `json:"summary,omitempty"`
}

// Runner 驱动 轮询/执行/上报 循环直到服务器下发结束指令
type Runner struct {
	session  *Session
	executor Executor
	log      logging.Logger

	PollInterval time.Duration // 空轮询后的等待时间
	MaxIdlePolls int           // 连续空轮询上限，<=0 不限制
	FetchSummary bool          // 关闭模型后获取执行汇总
}

// NewRunner 创建执行循环
func NewRunner(session *Session, executor Executor, log logging.Logger) *Runner {
	return &Runner{
		session:      session,
		executor:     executor,
		log:          log,
		PollInterval: time.Second,
	}
}

// Session 返回执行循环使用的会话
func (r *Runner) Session() *Session {
	return r.session
}

// Run 打开模型并执行所有命令，最后关闭模型
func (r *Runner) Run(ctx context.Context, req *models.ExecutionRequest) (*RunResult, error) {
	agentID, err := r.session.Start(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "start model")
	}

	res := &RunResult{AgentID: agentID}
	log := r.log.WithField("agent_id", agentID)
	log.Info("model execution started")

	idle := 0
	timer := time.NewTimer(r.PollInterval)
	defer timer.Stop()
	for {
		cmd, err := r.session.Poll(ctx)
		if err != nil {
			r.abort()
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			return res, errors.Wrap(err, "poll next command")
		}

		if cmd == nil {
			idle++
			if r.MaxIdlePolls > 0 && idle >= r.MaxIdlePolls {
				r.abort()
				return res, ErrIdle
			}
			timer.Reset(r.PollInterval)
			select {
			case <-ctx.Done():
				r.abort()
				return res, ctx.Err()
			case <-timer.C:
			}
			continue
		}
		idle = 0

		if models.ParseAction(cmd.Action).IsExit() {
			log.WithField("action", cmd.Action).Info("exit command received")
			break
		}

		status, result := r.executor.Execute(ctx, cmd.Action)
		r.session.CmdDone(status, result)
		res.Commands++
		log.WithField("action", cmd.Action).WithField("status", status).Info("command done")
	}

	if _, err := r.session.Close(ctx); err != nil {
		return res, errors.Wrap(err, "close model")
	}

	if r.FetchSummary {
		summary, err := r.session.Summary(ctx)
		if err != nil {
			return res, errors.Wrap(err, "get summary")
		}
		res.Summary = summary
	}
	return res, nil
}

// abort 尽力停止并关闭模型
func (r *Runner) abort() {
	ctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
	defer cancel()

	if _, err := r.session.Stop(ctx); err != nil {
		r.log.WithError(err).Warn("stop model failed")
	}
	if _, err := r.session.Close(ctx); err != nil {
		r.log.WithError(err).Warn("close model failed")
	}
}
