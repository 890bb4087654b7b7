package api

import (
	"context"
	"net/http"
	"time"

	"mbt_agent/pkg/agent"
	"mbt_agent/pkg/logging"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// requestTimeout 向模型执行服务器转发请求的超时
const requestTimeout = 30 * time.Second

// ActionLister 列出可执行的动作
type ActionLister interface {
	List() []string
}

// Server 代理状态接口服务
type Server struct {
	router  *gin.Engine
	session *agent.Session
	actions ActionLister
	log     logging.Logger
	started time.Time
}

// NewServer 创建状态接口服务，actions 可以为 nil
func NewServer(session *agent.Session, actions ActionLister) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	server := &Server{
		router:  router,
		session: session,
		actions: actions,
		log:     logging.New("api"),
		started: time.Now(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	s.router.Use(cors.Default())

	api := s.router.Group("/api/v1")
	{
		// 系统API
		api.GET("/health", s.healthCheck)
		api.GET("/actions", s.listActions)

		// 会话API
		api.GET("/session", s.getSession)
		api.GET("/messages", s.getMessages)
		api.GET("/reports", s.getReports)
		api.GET("/summary", s.getSummary)
		api.POST("/session/stop", s.stopModel)
		api.POST("/session/close", s.closeModel)
	}
}

// Handler 返回HTTP处理器
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动服务器，ctx 结束时优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.WithField("addr", addr).Info("status API listening")

	select {
	case err := <-errCh:
		return errors.Wrap(err, "status API")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown status API")
	}
	return nil
}

// healthCheck 健康检查
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": time.Since(s.started).Round(time.Second).String(),
		"seq":    s.session.Seq(),
	})
}

// listActions 已注册的动作
func (s *Server) listActions(c *gin.Context) {
	actions := []string{}
	if s.actions != nil {
		actions = s.actions.List()
	}
	c.JSON(http.StatusOK, gin.H{
		"actions": actions,
		"count":   len(actions),
	})
}

// getSession 会话快照
func (s *Server) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Info())
}

// getMessages 消息日志
func (s *Server) getMessages(c *gin.Context) {
	messages := s.session.Messages()
	if messages == nil {
		messages = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

// getReports 报表页面地址
func (s *Server) getReports(c *gin.Context) {
	reports := make(map[string]string, len(agent.ReportPages))
	for name, page := range agent.ReportPages {
		url, err := s.session.ReportURL(page)
		if err != nil {
			s.abort(c, err)
			return
		}
		reports[name] = url
	}
	c.JSON(http.StatusOK, reports)
}

// getSummary 执行汇总
func (s *Server) getSummary(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	summary, err := s.session.Summary(ctx)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// stopModel 停止模型执行
func (s *Server) stopModel(c *gin.Context) {
	s.modelAction(c, "stop", s.session.Stop)
}

// closeModel 关闭模型
func (s *Server) closeModel(c *gin.Context) {
	s.modelAction(c, "close", s.session.Close)
}

func (s *Server) modelAction(c *gin.Context, action string, fn func(context.Context) (string, error)) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	body, err := fn(ctx)
	if err != nil {
		s.abort(c, err)
		return
	}

	s.log.WithField("action", action).Info("model action requested")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"action":  action,
		"result":  body,
	})
}

// abort 把会话错误映射为HTTP状态码
func (s *Server) abort(c *gin.Context, err error) {
	status := http.StatusBadGateway
	switch errors.Cause(err) {
	case agent.ErrNoSession:
		status = http.StatusConflict
	case context.DeadlineExceeded:
		status = http.StatusGatewayTimeout
	}

	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}
