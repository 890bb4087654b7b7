package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"

	"mbt_agent/pkg/config"
	"mbt_agent/pkg/logging"
	"mbt_agent/pkg/models"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ResponseWildcard 所有设备的响应主题
const ResponseWildcard = "device/+/response"

// CommandTopic 设备命令主题
func CommandTopic(deviceID string) string {
	return fmt.Sprintf("device/%s/command", deviceID)
}

// ResponseTopic 设备响应主题
func ResponseTopic(deviceID string) string {
	return fmt.Sprintf("device/%s/response", deviceID)
}

// BrokerURL 由配置生成broker地址
func BrokerURL(cfg *config.Config) string {
	return fmt.Sprintf("tcp://%s:%s", cfg.MQTTBroker, cfg.MQTTPort)
}

// Options 生成paho客户端选项
func Options(cfg *config.Config, prefix string) *MQTT.ClientOptions {
	opts := MQTT.NewClientOptions().AddBroker(BrokerURL(cfg))
	opts.SetClientID(prefix + "-" + uuid.NewString())
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}
	return opts
}

// Client MQTT客户端封装
type Client struct {
	client MQTT.Client
	log    logging.Logger

	mu              sync.RWMutex
	responseHandler func(*models.Response)
}

// NewClient 创建新的MQTT客户端
func NewClient(cfg *config.Config) *Client {
	c := &Client{log: logging.New("mqtt")}

	opts := Options(cfg, "mbt-agent")
	opts.SetDefaultPublishHandler(func(client MQTT.Client, msg MQTT.Message) {
		c.log.WithField("topic", msg.Topic()).Debugf("received message: %s", msg.Payload())
	})
	c.client = MQTT.NewClient(opts)

	return c
}

// Connect 连接到MQTT服务器并订阅设备响应
func (c *Client) Connect() error {
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "mqtt connect")
	}

	c.log.Info("connected to MQTT broker")

	return c.SubscribeResponses()
}

// SetResponseHandler 设置响应处理器
func (c *Client) SetResponseHandler(handler func(*models.Response)) {
	c.mu.Lock()
	c.responseHandler = handler
	c.mu.Unlock()
}

// SubscribeResponses 订阅所有设备的响应
func (c *Client) SubscribeResponses() error {
	token := c.client.Subscribe(ResponseWildcard, 1, func(client MQTT.Client, msg MQTT.Message) {
		log := c.log.WithField("topic", msg.Topic())

		var response models.Response
		if err := json.Unmarshal(msg.Payload(), &response); err != nil {
			log.WithError(err).Warn("failed to unmarshal response")
			return
		}

		log.WithField("id", response.ID).Debugf("response status %s", response.Status)

		c.mu.RLock()
		handler := c.responseHandler
		c.mu.RUnlock()
		if handler == nil {
			log.Warn("no response handler set")
			return
		}
		handler(&response)
	})

	if token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "subscribe responses")
	}

	c.log.WithField("topic", ResponseWildcard).Info("subscribed to responses")
	return nil
}

// PublishCommand 发布命令到指定主题
func (c *Client) PublishCommand(topic string, command *models.Command) error {
	payload, err := json.Marshal(command)
	if err != nil {
		return errors.Wrap(err, "marshal command")
	}

	token := c.client.Publish(topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "publish command")
	}

	c.log.WithField("topic", topic).Debugf("published command %s", command.ID)
	return nil
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	c.log.Info("disconnected from MQTT broker")
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
