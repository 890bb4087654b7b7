package models

import (
	"time"

	"mbt_agent/pkg/msglog"
)

// ExecutionRequest 一次模型执行会话的请求
type ExecutionRequest struct {
	SvrURL         string        `json:"svr_url"`          // 服务器地址，如 http://localhost:8888
	ModelName      string        `json:"model_name"`       // 模型名称
	StatDesc       string        `json:"stat_desc"`        // 执行描述，为空时自动生成
	AgentID        string        `json:"agent_id"`         // 服务器分配的代理ID
	ModelStartWait time.Duration `json:"model_start_wait"` // 获取代理ID前的等待时间
	Debug          bool          `json:"debug"`            // 调试模式，记录发送的URL
	MsgMax         int           `json:"msg_max"`          // 消息日志容量，<=0 不限制
	Messages       *msglog.Log   `json:"-"`                // 消息日志，nil 表示不记录
}

// Command 下发给设备的命令
type Command struct {
	ID        string   `json:"id"`                  // 命令唯一ID
	Type      string   `json:"type"`                // 命令类型: shell, tap, input, wait
	Command   string   `json:"command,omitempty"`   // shell命令
	Args      []string `json:"args,omitempty"`      // 命令参数
	Text      string   `json:"text,omitempty"`      // 输入文本
	Timeout   int      `json:"timeout,omitempty"`   // 超时时间(秒)
	DeviceID  string   `json:"device_id,omitempty"` // 设备ID
	Timestamp int64    `json:"timestamp,omitempty"`
}

// Response 设备返回的命令执行结果
type Response struct {
	ID        string `json:"id"`               // 对应的命令ID
	Command   string `json:"command"`          // 执行的命令
	Status    string `json:"status"`           // success, error, timeout
	Result    string `json:"result,omitempty"` // 执行结果
	Output    string `json:"output,omitempty"` // 命令输出
	Error     string `json:"error,omitempty"`  // 错误信息
	Duration  int64  `json:"duration"`         // 执行耗时(毫秒)
	Timestamp int64  `json:"timestamp"`
}

// SessionInfo 会话快照，用于状态接口
type SessionInfo struct {
	Seq         int               `json:"seq"`
	Open        bool              `json:"open"`
	State       string            `json:"state"`
	Request     *ExecutionRequest `json:"request,omitempty"`
	LastCommand *RemoteCommand    `json:"last_command,omitempty"`
}
