package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"mbt_agent/pkg/logging"
	"mbt_agent/pkg/models"
	"mbt_agent/pkg/transport"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultCommandDelay = 50 * time.Millisecond

var (
	// ErrNoSession 当前没有打开的会话
	ErrNoSession = errors.New("no model session is open")
	// ErrNoAgentID 服务器尚未分配代理ID
	ErrNoAgentID = errors.New("agent id has not been assigned")
	// ErrInvalidRequest 执行请求为空
	ErrInvalidRequest = errors.New("execution request is nil")
	// ErrSuperseded 请求完成时会话已被新的 StartModel 替换
	ErrSuperseded = errors.New("session superseded by a newer model start")
)

// CommandFunc 收到远程命令时的回调
type CommandFunc func(cmd models.RemoteCommand)

// Option 会话配置项
type Option func(*Session)

// WithLogger 设置日志器
func WithLogger(log logging.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithClock 设置时间来源
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithScheduler 设置延迟执行函数
func WithScheduler(afterFunc func(time.Duration, func())) Option {
	return func(s *Session) { s.afterFunc = afterFunc }
}

// WithCommandDelay 设置命令回调前的延迟
func WithCommandDelay(d time.Duration) Option {
	return func(s *Session) { s.cmdDelay = d }
}

// Session 与模型执行服务器的一次会话
type Session struct {
	transport transport.Transport
	log       logging.Logger
	now       func() time.Time
	afterFunc func(time.Duration, func())
	cmdDelay  time.Duration

	mu        sync.Mutex
	req       *models.ExecutionRequest
	closed    bool
	seq       int
	lastCmd   models.RemoteCommand
	state     models.CommandState
	onSuccess transport.SuccessFunc
	onError   transport.ErrorFunc
	onCommand CommandFunc
}

// New 创建会话
func New(t transport.Transport, opts ...Option) *Session {
	s := &Session{
		transport: t,
		log:       logging.New("agent"),
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		cmdDelay:  defaultCommandDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartModel 打开并执行模型，代理ID分配后调用 onSuccess
func (s *Session) StartModel(ctx context.Context, req *models.ExecutionRequest, onSuccess transport.SuccessFunc, onError transport.ErrorFunc) {
	if req == nil {
		if onError != nil {
			onError(ErrInvalidRequest)
		}
		return
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.onSuccess = onSuccess
	s.onError = onError
	s.req = req
	s.closed = false
	if req.StatDesc == "" {
		req.StatDesc = defaultStatDesc(s.now())
	}
	req.AgentID = ""
	s.lastCmd = models.RemoteCommand{}
	s.state = models.StateIdle
	url := execURL(req)
	wait := req.ModelStartWait
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"model": req.ModelName,
		"seq":   seq,
	}).Info("starting model execution")

	s.get(ctx, req, url, func(string) {
		s.log.WithField("wait", wait).Debug("model started, scheduling agent registration")
		s.afterFunc(wait, func() { s.getAgentID(ctx, seq) })
	}, func(err error) {
		s.fail(seq, "execute model", err)
	})
}

// StopModel 停止当前模型的执行
func (s *Session) StopModel(ctx context.Context, onSuccess transport.SuccessFunc, onError transport.ErrorFunc) {
	s.modelAction(ctx, "stop", onSuccess, onError)
}

// CloseModel 关闭当前模型，成功后会话结束
func (s *Session) CloseModel(ctx context.Context, onSuccess transport.SuccessFunc, onError transport.ErrorFunc) {
	s.modelAction(ctx, "close", onSuccess, onError)
}

func (s *Session) modelAction(ctx context.Context, action string, onSuccess transport.SuccessFunc, onError transport.ErrorFunc) {
	s.mu.Lock()
	req, seq, closed := s.req, s.seq, s.closed
	s.mu.Unlock()

	if req == nil || closed {
		if onError != nil {
			onError(ErrNoSession)
		}
		return
	}

	s.log.WithFields(logrus.Fields{
		"model":  req.ModelName,
		"action": action,
	}).Info("sending model action")

	s.get(ctx, req, modelActionURL(req, action), func(body string) {
		if action == "close" {
			s.mu.Lock()
			if seq == s.seq {
				s.closed = true
				s.lastCmd = models.RemoteCommand{}
				s.state = models.StateIdle
			}
			s.mu.Unlock()
		}
		if onSuccess != nil {
			onSuccess(body)
		}
	}, onError)
}

// GetSummary 获取当前服务器的执行汇总
func (s *Session) GetSummary(ctx context.Context, onSuccess transport.SuccessFunc, onError transport.ErrorFunc) {
	s.mu.Lock()
	req := s.req
	s.mu.Unlock()

	if req == nil {
		if onError != nil {
			onError(ErrNoSession)
		}
		return
	}
	s.get(ctx, req, summaryURL(req.SvrURL), onSuccess, onError)
}

// getAgentID 注册代理并获取代理ID
func (s *Session) getAgentID(ctx context.Context, seq int) {
	s.mu.Lock()
	if seq != s.seq || s.req == nil {
		s.mu.Unlock()
		s.log.WithField("seq", seq).Debug("skipping agent registration for superseded session")
		return
	}
	req := s.req
	url := regAgentURL(req)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		s.fail(seq, "register agent", err)
		return
	}

	s.get(ctx, req, url, func(body string) {
		agentID := strings.TrimSpace(body)

		s.mu.Lock()
		if seq != s.seq {
			s.mu.Unlock()
			s.log.WithField("seq", seq).Warn("dropping agent id of superseded session")
			return
		}
		s.req.AgentID = agentID
		cb := s.onSuccess
		s.mu.Unlock()

		s.log.WithField("agent_id", agentID).Info("agent registered")
		if cb != nil {
			cb(agentID)
		}
	}, func(err error) {
		s.fail(seq, "register agent", err)
	})
}

// fail 将错误原样交给会话的错误回调，已被替换的会话只记录日志
func (s *Session) fail(seq int, request string, err error) {
	s.mu.Lock()
	current := seq == s.seq
	cb := s.onError
	s.mu.Unlock()

	log := s.log.WithError(err).WithField("request", request)
	if !current {
		log.Warn("dropping error of superseded session")
		return
	}
	log.Error("session request failed")
	if cb != nil {
		cb(err)
	}
}

// get 发送请求，调试模式下记录请求地址
func (s *Session) get(ctx context.Context, req *models.ExecutionRequest, url string, onSuccess transport.SuccessFunc, onError transport.ErrorFunc) {
	if req != nil && req.Debug {
		s.addMsg(req, "sending: "+url)
		s.log.WithField("url", url).Debug("sending")
	}
	s.transport.Get(ctx, url, onSuccess, onError)
}

// AddMsg 向当前会话的消息日志追加一条消息
func (s *Session) AddMsg(msg string) {
	s.mu.Lock()
	req := s.req
	s.mu.Unlock()

	if req != nil {
		s.addMsg(req, msg)
	}
}

func (s *Session) addMsg(req *models.ExecutionRequest, msg string) {
	if req.Messages == nil {
		return
	}
	req.Messages.Append(msg)
	req.Messages.Purge(req.MsgMax)
}

// Messages 当前会话的消息日志内容
func (s *Session) Messages() []string {
	s.mu.Lock()
	req := s.req
	s.mu.Unlock()

	if req == nil || req.Messages == nil {
		return nil
	}
	return req.Messages.Entries()
}

// Seq 执行序号，每次 StartModel 加一，从不重置
func (s *Session) Seq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// IsOpen 会话是否已打开且未关闭
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.req != nil && !s.closed
}

// Request 当前执行请求的副本，没有会话时返回 nil
func (s *Session) Request() *models.ExecutionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.req == nil {
		return nil
	}
	req := *s.req
	return &req
}

// LastCommand 最后收到的远程命令
func (s *Session) LastCommand() models.RemoteCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCmd
}

// State 当前命令状态
func (s *Session) State() models.CommandState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info 会话快照
func (s *Session) Info() models.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := models.SessionInfo{
		Seq:   s.seq,
		Open:  s.req != nil && !s.closed,
		State: s.state.String(),
	}
	if s.req != nil {
		req := *s.req
		info.Request = &req
	}
	if s.lastCmd.Action != "" {
		cmd := s.lastCmd
		info.LastCommand = &cmd
	}
	return info
}

// ReportURL 当前服务器上报表页面的地址
func (s *Session) ReportURL(page ReportPage) (string, error) {
	s.mu.Lock()
	req := s.req
	s.mu.Unlock()

	if req == nil {
		return "", ErrNoSession
	}
	return ReportURL(req.SvrURL, page), nil
}

func defaultStatDesc(now time.Time) string {
	return fmt.Sprintf("MbtAgent_Exec_%s", now.Format("2006-01-02T15:04:05.000"))
}
