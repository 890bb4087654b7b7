package executor

import (
	"context"
	"strings"

	"mbt_agent/pkg/models"
)

// Dispatcher 把设备命令发送到执行端并返回结果
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd *models.Command) (*models.Response, error)
}

// DispatcherFunc 函数形式的 Dispatcher
type DispatcherFunc func(ctx context.Context, cmd *models.Command) (*models.Response, error)

// Dispatch 调用函数本身
func (f DispatcherFunc) Dispatch(ctx context.Context, cmd *models.Command) (*models.Response, error) {
	return f(ctx, cmd)
}

// OutcomeFromResponse 把设备响应映射为上报给服务器的结果
func OutcomeFromResponse(resp *models.Response) Outcome {
	if resp == nil {
		return Error("no response")
	}

	switch resp.Status {
	case "success":
		return Success(firstNonEmpty(resp.Result, resp.Output))
	case "timeout", "error":
		return Error(firstNonEmpty(resp.Error, resp.Output, resp.Status))
	default:
		return Fail(firstNonEmpty(resp.Error, resp.Output, resp.Result, resp.Status))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
