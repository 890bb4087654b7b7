package agent

import (
	"context"
	"strings"

	"mbt_agent/pkg/models"
	"mbt_agent/pkg/transport"
)

// NextCmd 向服务器获取下一条命令，同时带回上一条命令的执行结果。
// onCommand 非空时替换已注册的命令回调。服务器返回空内容时不调用回调，
// 由调用方决定何时再次轮询。
func (s *Session) NextCmd(ctx context.Context, onCommand CommandFunc) error {
	if onCommand != nil {
		s.mu.Lock()
		s.onCommand = onCommand
		s.mu.Unlock()
	}
	return s.poll(ctx, nil, nil, nil)
}

// CmdDone 记录当前命令的执行结果，下一次 NextCmd 会把结果发给服务器
func (s *Session) CmdDone(status models.CommandStatus, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastCmd.Action == "" {
		s.log.WithField("status", status).Debug("no command outstanding, ignoring result")
		return
	}
	s.lastCmd.Status = status
	s.lastCmd.Result = result
	s.state = models.StateReported
}

// poll 发送一次 nextCmd 请求。deliver 为空时使用已注册的命令回调；
// onError 为空时错误交给会话的错误回调。
func (s *Session) poll(ctx context.Context, deliver CommandFunc, onEmpty func(), onError transport.ErrorFunc) error {
	s.mu.Lock()
	if s.req == nil || s.closed {
		s.mu.Unlock()
		return ErrNoSession
	}
	if s.req.AgentID == "" {
		s.mu.Unlock()
		return ErrNoAgentID
	}
	req, seq := s.req, s.seq
	url := nextCmdURL(req.SvrURL, req.AgentID, s.lastCmd)
	s.mu.Unlock()

	s.get(ctx, req, url, func(body string) {
		action := strings.TrimSpace(body)

		s.mu.Lock()
		if seq != s.seq {
			s.mu.Unlock()
			s.log.WithField("seq", seq).Warn("dropping command of superseded session")
			if onError != nil {
				onError(ErrSuperseded)
			}
			return
		}
		if action == "" {
			s.state = models.StateIdle
			s.mu.Unlock()
			if onEmpty != nil {
				onEmpty()
			}
			return
		}

		cmd := models.RemoteCommand{
			Action:     action,
			ReceivedAt: s.now(),
		}
		s.lastCmd = cmd
		s.state = models.StateDelivered
		cb := deliver
		if cb == nil {
			cb = s.onCommand
		}
		delay := s.cmdDelay
		s.mu.Unlock()

		s.log.WithField("action", action).Debug("received remote command")
		if cb != nil {
			s.afterFunc(delay, func() { cb(cmd) })
		}
	}, func(err error) {
		if onError != nil {
			onError(err)
			return
		}
		s.fail(seq, "next command", err)
	})
	return nil
}
