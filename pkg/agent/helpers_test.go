package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"mbt_agent/pkg/logging"
	"mbt_agent/pkg/transport"

	"github.com/gin-gonic/gin"
)

// recorder 记录请求地址并按 action 返回预设结果的 Transport
type recorder struct {
	mu      sync.Mutex
	urls    []string
	replies map[string][]string
	errs    map[string]error
}

func newRecorder() *recorder {
	return &recorder{
		replies: make(map[string][]string),
		errs:    make(map[string]error),
	}
}

func (r *recorder) reply(action string, bodies ...string) {
	r.mu.Lock()
	r.replies[action] = append(r.replies[action], bodies...)
	r.mu.Unlock()
}

func (r *recorder) fail(action string, err error) {
	r.mu.Lock()
	r.errs[action] = err
	r.mu.Unlock()
}

func (r *recorder) Get(ctx context.Context, rawURL string, onSuccess transport.SuccessFunc, onError transport.ErrorFunc) {
	values, _ := ParseEndpoint(rawURL)
	action := values.Get("action")

	r.mu.Lock()
	r.urls = append(r.urls, rawURL)
	err := r.errs[action]
	body := ""
	if queue := r.replies[action]; len(queue) > 0 {
		body = queue[0]
		r.replies[action] = queue[1:]
	}
	r.mu.Unlock()

	go func() {
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(body)
		}
	}()
}

func (r *recorder) requests(action string) []url.Values {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []url.Values
	for _, u := range r.urls {
		values, err := ParseEndpoint(u)
		if err == nil && values.Get("action") == action {
			out = append(out, values)
		}
	}
	return out
}

func (r *recorder) last(action string) url.Values {
	reqs := r.requests(action)
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

func (r *recorder) rawURLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}

func newTestSession(t transport.Transport, opts ...Option) *Session {
	base := []Option{
		WithLogger(logging.Discard()),
		WithCommandDelay(time.Millisecond),
	}
	return New(t, append(base, opts...)...)
}

// fakeServer 模拟模型执行服务器
type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	agentID  string
	commands []string
	polls    []url.Values
	actions  []string
}

func newFakeServer(agentID string, commands ...string) *fakeServer {
	gin.SetMode(gin.TestMode)
	fs := &fakeServer{agentID: agentID, commands: commands}

	router := gin.New()
	router.GET("/MbtSvr/*rest", fs.handle)
	fs.Server = httptest.NewServer(router)
	return fs
}

func (fs *fakeServer) handle(c *gin.Context) {
	values, err := ParseEndpoint(c.Request.URL.String())
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	action := values.Get("action")
	fs.actions = append(fs.actions, action)

	switch action {
	case "exec", "stop", "close":
		c.String(http.StatusOK, "ok")
	case "summary":
		c.String(http.StatusOK, "passed=2 failed=0")
	case "regAgent":
		c.String(http.StatusOK, fs.agentID)
	case "nextCmd":
		if values.Get("agentID") != fs.agentID {
			c.String(http.StatusForbidden, "unknown agent")
			return
		}
		fs.polls = append(fs.polls, values)
		if len(fs.commands) == 0 {
			c.String(http.StatusOK, "")
			return
		}
		next := fs.commands[0]
		fs.commands = fs.commands[1:]
		c.String(http.StatusOK, next)
	default:
		c.String(http.StatusNotFound, "unknown action")
	}
}

func (fs *fakeServer) pollLog() []url.Values {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]url.Values(nil), fs.polls...)
}

func (fs *fakeServer) actionLog() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.actions...)
}
