package agent

import (
	"context"

	"mbt_agent/pkg/models"
)

type reply struct {
	body string
	err  error
}

// replyFuncs 返回的回调只保留第一次结果
func replyFuncs() (chan reply, func(string), func(error)) {
	ch := make(chan reply, 1)
	send := func(r reply) {
		select {
		case ch <- r:
		default:
		}
	}
	return ch,
		func(body string) { send(reply{body: body}) },
		func(err error) { send(reply{err: err}) }
}

func wait(ctx context.Context, ch <-chan reply) (string, error) {
	select {
	case r := <-ch:
		return r.body, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Start 打开模型并等待代理ID
func (s *Session) Start(ctx context.Context, req *models.ExecutionRequest) (string, error) {
	ch, onSuccess, onError := replyFuncs()
	s.StartModel(ctx, req, onSuccess, onError)
	return wait(ctx, ch)
}

// Stop 停止模型并等待服务器应答
func (s *Session) Stop(ctx context.Context) (string, error) {
	ch, onSuccess, onError := replyFuncs()
	s.StopModel(ctx, onSuccess, onError)
	return wait(ctx, ch)
}

// Close 关闭模型并等待服务器应答
func (s *Session) Close(ctx context.Context) (string, error) {
	ch, onSuccess, onError := replyFuncs()
	s.CloseModel(ctx, onSuccess, onError)
	return wait(ctx, ch)
}

// Summary 获取执行汇总
func (s *Session) Summary(ctx context.Context) (string, error) {
	ch, onSuccess, onError := replyFuncs()
	s.GetSummary(ctx, onSuccess, onError)
	return wait(ctx, ch)
}

type pollReply struct {
	cmd *models.RemoteCommand
	err error
}

// Poll 轮询一次下一条命令。服务器没有命令时返回 nil, nil。
// 不会替换 NextCmd 注册的命令回调。
func (s *Session) Poll(ctx context.Context) (*models.RemoteCommand, error) {
	ch := make(chan pollReply, 1)
	err := s.poll(ctx,
		func(cmd models.RemoteCommand) { ch <- pollReply{cmd: &cmd} },
		func() { ch <- pollReply{} },
		func(err error) { ch <- pollReply{err: err} },
	)
	if err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.cmd, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
