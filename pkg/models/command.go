package models

import "time"

// CommandStatus 远程命令执行状态
type CommandStatus string

const (
	StatusUnset   CommandStatus = ""
	StatusSuccess CommandStatus = "success"
	StatusFail    CommandStatus = "fail"
	StatusError   CommandStatus = "error"
)

// Valid 检查状态是否为已知取值
func (s CommandStatus) Valid() bool {
	switch s {
	case StatusUnset, StatusSuccess, StatusFail, StatusError:
		return true
	}
	return false
}

// RemoteCommand 服务器下发的远程命令及其执行结果
type RemoteCommand struct {
	Action     string        `json:"action"`      // 动作字符串，如 launchAUT(...)、$exitAgent(...)
	Status     CommandStatus `json:"status"`      // 执行状态，未上报时为空
	Result     string        `json:"result"`      // 执行结果
	ReceivedAt time.Time     `json:"received_at"` // 接收时间
}

// Reported 是否已上报执行结果
func (c *RemoteCommand) Reported() bool {
	return c.Status != StatusUnset || c.Result != ""
}

// CommandState 会话内命令状态机
type CommandState int

const (
	// StateIdle 无未完成命令
	StateIdle CommandState = iota
	// StateDelivered 命令已交给调用方，尚未上报结果
	StateDelivered
	// StateReported 命令结果已记录，等待下一次轮询带回服务器
	StateReported
)

func (s CommandState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDelivered:
		return "delivered"
	case StateReported:
		return "reported"
	default:
		return "unknown"
	}
}
