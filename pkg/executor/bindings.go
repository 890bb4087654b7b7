package executor

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"mbt_agent/pkg/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Binding 动作到设备命令的映射
type Binding struct {
	Type        string   `yaml:"type"`    // shell, tap, input, wait
	Command     string   `yaml:"command"` // 支持 {0} {1} 参数占位符
	Args        []string `yaml:"args"`
	Text        string   `yaml:"text"`
	Timeout     int      `yaml:"timeout"` // 秒
	Description string   `yaml:"description"`
}

// Bindings 绑定文件
type Bindings struct {
	DeviceID string             `yaml:"device_id"`
	Actions  map[string]Binding `yaml:"actions"`
}

// LoadBindings 从YAML文件加载动作绑定
func LoadBindings(path string) (*Bindings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read bindings")
	}
	return ParseBindings(data)
}

// ParseBindings 解析动作绑定
func ParseBindings(data []byte) (*Bindings, error) {
	var b Bindings
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, errors.Wrap(err, "parse bindings")
	}

	for name, binding := range b.Actions {
		if binding.Type == "" {
			binding.Type = "shell"
		}
		switch binding.Type {
		case "shell":
			if binding.Command == "" {
				return nil, errors.Errorf("action %s: shell binding needs a command", name)
			}
		case "tap", "input", "wait":
		default:
			return nil, errors.Errorf("action %s: unknown command type %q", name, binding.Type)
		}
		b.Actions[name] = binding
	}
	return &b, nil
}

// Names 按名称排序的绑定动作
func (b *Bindings) Names() []string {
	names := make([]string, 0, len(b.Actions))
	for name := range b.Actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register 把所有绑定注册到注册表，命令经 Dispatcher 发送
func (b *Bindings) Register(reg *Registry, d Dispatcher) {
	for name, binding := range b.Actions {
		reg.Register(name, binding.handler(b.DeviceID, d))
	}
}

func (b Binding) handler(deviceID string, d Dispatcher) HandlerFunc {
	return func(ctx context.Context, action models.Action) Outcome {
		resp, err := d.Dispatch(ctx, b.command(action, deviceID))
		if err != nil {
			return Error(err.Error())
		}
		return OutcomeFromResponse(resp)
	}
}

// command 用动作参数展开绑定，生成设备命令
func (b Binding) command(action models.Action, deviceID string) *models.Command {
	cmd := &models.Command{
		ID:        uuid.NewString(),
		Type:      b.Type,
		Command:   expand(b.Command, action.Args),
		Text:      expand(b.Text, action.Args),
		Timeout:   b.Timeout,
		DeviceID:  deviceID,
		Timestamp: time.Now().Unix(),
	}

	if len(b.Args) > 0 {
		for _, arg := range b.Args {
			cmd.Args = append(cmd.Args, expand(arg, action.Args))
		}
	} else if b.Type != "shell" {
		cmd.Args = append(cmd.Args, action.Args...)
	}
	return cmd
}

// expand 替换 {n} 占位符，{*} 替换为全部参数
func expand(tmpl string, args []string) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}
	pairs := []string{"{*}", strings.Join(args, " ")}
	for i, arg := range args {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", arg)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Describe 绑定说明，用于日志和状态接口
func (b Binding) Describe() string {
	if b.Description != "" {
		return b.Description
	}
	return fmt.Sprintf("%s %s", b.Type, b.Command)
}
