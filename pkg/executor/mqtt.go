package executor

import (
	"context"
	"sync"
	"time"

	"mbt_agent/pkg/models"
	"mbt_agent/pkg/mqtt"

	"github.com/pkg/errors"
)

// Publisher 发布设备命令
type Publisher interface {
	PublishCommand(topic string, command *models.Command) error
}

// ResponseWaiter 响应等待器
type ResponseWaiter struct {
	pendingCommands map[string]chan *models.Response
	mu              sync.Mutex
}

// NewResponseWaiter 创建响应等待器
func NewResponseWaiter() *ResponseWaiter {
	return &ResponseWaiter{
		pendingCommands: make(map[string]chan *models.Response),
	}
}

// RegisterCommand 注册等待响应的命令
func (rw *ResponseWaiter) RegisterCommand(commandID string) <-chan *models.Response {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	ch := make(chan *models.Response, 1)
	rw.pendingCommands[commandID] = ch
	return ch
}

// Cancel 放弃等待
func (rw *ResponseWaiter) Cancel(commandID string) {
	rw.mu.Lock()
	delete(rw.pendingCommands, commandID)
	rw.mu.Unlock()
}

// HandleResponse 处理响应，未注册的命令ID被忽略
func (rw *ResponseWaiter) HandleResponse(response *models.Response) {
	rw.mu.Lock()
	ch, exists := rw.pendingCommands[response.ID]
	delete(rw.pendingCommands, response.ID)
	rw.mu.Unlock()

	if exists {
		ch <- response
	}
}

// Pending 等待中的命令数
func (rw *ResponseWaiter) Pending() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return len(rw.pendingCommands)
}

// MQTTDispatcher 通过MQTT把命令下发给设备并等待响应
type MQTTDispatcher struct {
	publisher Publisher
	deviceID  string
	timeout   time.Duration
	waiter    *ResponseWaiter
}

// NewMQTTDispatcher 创建MQTT命令分发器，timeout 为命令未指定超时时的等待时间
func NewMQTTDispatcher(publisher Publisher, deviceID string, timeout time.Duration) *MQTTDispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MQTTDispatcher{
		publisher: publisher,
		deviceID:  deviceID,
		timeout:   timeout,
		waiter:    NewResponseWaiter(),
	}
}

// HandleResponse 交给 mqtt.Client.SetResponseHandler
func (d *MQTTDispatcher) HandleResponse(response *models.Response) {
	d.waiter.HandleResponse(response)
}

// Dispatch 发布命令并等待同ID的响应，超时返回 timeout 状态的响应
func (d *MQTTDispatcher) Dispatch(ctx context.Context, command *models.Command) (*models.Response, error) {
	if command.DeviceID == "" {
		command.DeviceID = d.deviceID
	}

	responseChan := d.waiter.RegisterCommand(command.ID)
	defer d.waiter.Cancel(command.ID)

	if err := d.publisher.PublishCommand(mqtt.CommandTopic(command.DeviceID), command); err != nil {
		return nil, errors.Wrap(err, "dispatch command")
	}

	timeout := d.timeout
	if command.Timeout > 0 {
		timeout = time.Duration(command.Timeout) * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case response := <-responseChan:
		return response, nil
	case <-timer.C:
		return &models.Response{
			ID:        command.ID,
			Command:   command.Command,
			Status:    "timeout",
			Error:     "command execution timeout",
			Timestamp: time.Now().Unix(),
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
