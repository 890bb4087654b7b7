package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Config 应用程序配置
type Config struct {
	MQTTBroker   string
	MQTTPort     string
	MQTTUsername string
	MQTTPassword string

	ServerURL      string        // 模型执行服务器地址
	ModelName      string        // 模型名称
	StatDesc       string        // 执行描述
	ModelStartWait time.Duration // 获取代理ID前的等待时间
	PollInterval   time.Duration // 空轮询后的等待时间
	MaxIdlePolls   int           // 连续空轮询上限
	HTTPTimeout    time.Duration // 单次请求超时
	Debug          bool          // 调试模式
	MsgMax         int           // 消息日志容量
	BindingsFile   string        // 动作绑定文件
	DeviceID       string        // 目标设备ID，非空时通过MQTT下发命令
	APIAddr        string        // 状态接口监听地址，为空不启动
	LogLevel       string
}

// Default 默认配置
func Default() *Config {
	return &Config{
		MQTTBroker:     "localhost",
		MQTTPort:       "1883",
		ServerURL:      "http://localhost:8888",
		ModelStartWait: 2 * time.Second,
		PollInterval:   time.Second,
		HTTPTimeout:    30 * time.Second,
		MsgMax:         200,
		LogLevel:       "info",
	}
}

// LoadConfig 从.env文件和环境变量加载配置
func LoadConfig() *Config {
	config := Default()

	// 先尝试从.env文件加载
	loadFromEnvFile(config, ".env")

	// 然后从环境变量覆盖（如果存在）
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			config.set(key, value)
		}
	}

	return config
}

var keys = []string{
	"MQTT_BROKER", "MQTT_PORT", "MQTT_USERNAME", "MQTT_PASSWORD",
	"MBT_SERVER_URL", "MBT_MODEL", "MBT_STAT_DESC", "MBT_START_WAIT",
	"MBT_POLL_INTERVAL", "MBT_MAX_IDLE_POLLS", "MBT_HTTP_TIMEOUT", "MBT_DEBUG",
	"MBT_MSG_MAX", "MBT_BINDINGS", "MBT_DEVICE_ID", "MBT_API_ADDR", "MBT_LOG_LEVEL",
}

// set 按键名设置配置项，无法解析的值保持原配置
func (c *Config) set(key, value string) {
	switch key {
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_PORT":
		c.MQTTPort = value
	case "MQTT_USERNAME":
		c.MQTTUsername = value
	case "MQTT_PASSWORD":
		c.MQTTPassword = value
	case "MBT_SERVER_URL":
		c.ServerURL = value
	case "MBT_MODEL":
		c.ModelName = value
	case "MBT_STAT_DESC":
		c.StatDesc = value
	case "MBT_START_WAIT":
		if d, err := time.ParseDuration(value); err == nil {
			c.ModelStartWait = d
		}
	case "MBT_POLL_INTERVAL":
		if d, err := time.ParseDuration(value); err == nil {
			c.PollInterval = d
		}
	case "MBT_HTTP_TIMEOUT":
		if d, err := time.ParseDuration(value); err == nil {
			c.HTTPTimeout = d
		}
	case "MBT_MAX_IDLE_POLLS":
		if n, err := strconv.Atoi(value); err == nil {
			c.MaxIdlePolls = n
		}
	case "MBT_MSG_MAX":
		if n, err := strconv.Atoi(value); err == nil {
			c.MsgMax = n
		}
	case "MBT_DEBUG":
		if b, err := strconv.ParseBool(value); err == nil {
			c.Debug = b
		}
	case "MBT_BINDINGS":
		c.BindingsFile = value
	case "MBT_DEVICE_ID":
		c.DeviceID = value
	case "MBT_API_ADDR":
		c.APIAddr = value
	case "MBT_LOG_LEVEL":
		c.LogLevel = value
	}
}

// Validate 检查启动模型所需的配置
func (c *Config) Validate() error {
	switch {
	case c.ServerURL == "":
		return errors.New("server url must be provided")
	case c.ModelName == "":
		return errors.New("model name must be provided")
	case c.PollInterval < 0:
		return errors.New("poll interval must not be negative")
	}
	return nil
}

// loadFromEnvFile 从.env文件加载配置
func loadFromEnvFile(config *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// 简单去除引号
		value = strings.Trim(value, `"'`)

		config.set(key, value)
	}

	return scanner.Err()
}
