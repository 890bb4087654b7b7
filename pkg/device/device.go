package device

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"mbt_agent/pkg/config"
	"mbt_agent/pkg/executor"
	"mbt_agent/pkg/logging"
	"mbt_agent/pkg/models"
	"mbt_agent/pkg/mqtt"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

// Device 设备端命令执行器
type Device struct {
	deviceID      string
	mqttClient    MQTT.Client
	dispatcher    executor.Dispatcher
	commandTopic  string
	responseTopic string
	log           logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New 创建设备端执行器
func New(cfg *config.Config, deviceID string, dispatcher executor.Dispatcher) *Device {
	ctx, cancel := context.WithCancel(context.Background())
	return &Device{
		deviceID:      deviceID,
		mqttClient:    MQTT.NewClient(mqtt.Options(cfg, "device-"+deviceID)),
		dispatcher:    dispatcher,
		commandTopic:  mqtt.CommandTopic(deviceID),
		responseTopic: mqtt.ResponseTopic(deviceID),
		log:           logging.New("device").WithField("device", deviceID),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// ID 设备ID
func (d *Device) ID() string {
	return d.deviceID
}

// Connect 连接到MQTT服务器并订阅命令主题
func (d *Device) Connect() error {
	if token := d.mqttClient.Connect(); token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "mqtt connect")
	}

	if token := d.mqttClient.Subscribe(d.commandTopic, 1, d.handleCommand); token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "subscribe commands")
	}

	d.log.WithField("topic", d.commandTopic).Info("waiting for commands")
	return nil
}

// handleCommand 处理收到的命令
func (d *Device) handleCommand(client MQTT.Client, msg MQTT.Message) {
	var command models.Command
	if err := json.Unmarshal(msg.Payload(), &command); err != nil {
		d.log.WithError(err).Warn("failed to unmarshal command")
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.WithField("id", command.ID).Warn("device disconnecting, dropping command")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	d.log.WithField("id", command.ID).Infof("received %s command", command.Type)

	go func() {
		defer d.wg.Done()
		d.execute(&command)
	}()
}

func (d *Device) execute(command *models.Command) {
	start := time.Now()
	response, err := d.dispatcher.Dispatch(d.ctx, command)
	if err != nil {
		response = &models.Response{
			ID:        command.ID,
			Command:   command.Command,
			Status:    "error",
			Error:     err.Error(),
			Timestamp: time.Now().Unix(),
		}
	}
	if response.Duration == 0 {
		response.Duration = time.Since(start).Milliseconds()
	}

	d.sendResponse(response)
}

// sendResponse 发送响应
func (d *Device) sendResponse(response *models.Response) {
	payload, err := json.Marshal(response)
	if err != nil {
		d.log.WithError(err).Error("failed to marshal response")
		return
	}

	token := d.mqttClient.Publish(d.responseTopic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		d.log.WithError(token.Error()).Error("failed to publish response")
		return
	}

	d.log.WithField("id", response.ID).Debugf("response sent: %s", response.Status)
}

// Disconnect 停止接收命令，取消执行中的命令并断开连接
func (d *Device) Disconnect() {
	if token := d.mqttClient.Unsubscribe(d.commandTopic); token.WaitTimeout(time.Second) && token.Error() != nil {
		d.log.WithError(token.Error()).Debug("unsubscribe commands")
	}

	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	d.mqttClient.Disconnect(250)
	d.log.Info("disconnected from MQTT broker")
}

// DetectID 获取设备序列号，MOCK_SERIAL 优先
func DetectID(ctx context.Context, adb string) (string, error) {
	if mockSerial := os.Getenv("MOCK_SERIAL"); mockSerial != "" {
		return mockSerial, nil
	}

	if adb == "" {
		adb = "adb"
	}
	output, err := exec.CommandContext(ctx, adb, "shell", "getprop", "ro.serialno").Output()
	if err != nil {
		return "", errors.Wrap(err, "read device serial")
	}

	id := strings.TrimSpace(string(output))
	if id == "" {
		return "", errors.New("empty device serial")
	}
	return id, nil
}
