package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// SuccessFunc 请求成功回调，参数为响应内容
type SuccessFunc func(body string)

// ErrorFunc 请求失败回调
type ErrorFunc func(err error)

// Transport 异步 GET 传输层，每次调用恰好触发一个回调，且不阻塞调用方
type Transport interface {
	Get(ctx context.Context, url string, onSuccess SuccessFunc, onError ErrorFunc)
}

// Func 函数形式的 Transport
type Func func(ctx context.Context, url string, onSuccess SuccessFunc, onError ErrorFunc)

// Get 实现 Transport
func (f Func) Get(ctx context.Context, url string, onSuccess SuccessFunc, onError ErrorFunc) {
	f(ctx, url, onSuccess, onError)
}

// StatusError 服务器返回非 2xx 状态
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// HTTPTransport 基于 net/http 的实现
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport 创建 HTTP 传输层，timeout<=0 时不设超时
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
	}
}

// NewHTTPTransportWithClient 使用自定义 http.Client
func NewHTTPTransportWithClient(client *http.Client) *HTTPTransport {
	return &HTTPTransport{client: client}
}

// Get 异步发送 GET 请求
func (t *HTTPTransport) Get(ctx context.Context, url string, onSuccess SuccessFunc, onError ErrorFunc) {
	go func() {
		body, err := t.do(ctx, url)
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

func (t *HTTPTransport) do(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return string(data), nil
}
