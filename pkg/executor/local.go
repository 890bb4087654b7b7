package executor

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"mbt_agent/pkg/models"
)

// waitDelay 进程被杀后等待输出管道关闭的时间
const waitDelay = 500 * time.Millisecond

// LocalDispatcher 在本机执行设备命令，点击和输入通过 adb 完成
type LocalDispatcher struct {
	ADB    string // adb 可执行文件，默认 adb
	Serial string // adb -s 指定的设备序列号
}

// Dispatch 执行命令，执行失败体现在响应状态中
func (d *LocalDispatcher) Dispatch(ctx context.Context, command *models.Command) (*models.Response, error) {
	response := &models.Response{
		ID:        command.ID,
		Command:   command.Command,
		Status:    "success",
		Timestamp: time.Now().Unix(),
	}

	if command.Timeout > 0 && command.Type != "wait" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(command.Timeout)*time.Second)
		defer cancel()
	}

	start := time.Now()
	switch command.Type {
	case "shell", "":
		d.shell(ctx, command, response)
	case "tap":
		d.tap(ctx, command, response)
	case "input":
		d.input(ctx, command, response)
	case "wait":
		wait(ctx, command, response)
	default:
		response.Status = "error"
		response.Error = fmt.Sprintf("unknown command type: %s", command.Type)
	}
	response.Duration = time.Since(start).Milliseconds()

	if ctx.Err() == context.DeadlineExceeded && response.Status != "success" {
		response.Status = "timeout"
		response.Error = "command execution timeout"
	}
	return response, nil
}

func (d *LocalDispatcher) shell(ctx context.Context, command *models.Command, response *models.Response) {
	if command.Command == "" {
		response.Status = "error"
		response.Error = "empty command"
		return
	}

	name, args := command.Command, command.Args
	if len(args) == 0 {
		name, args = "/bin/sh", []string{"-c", command.Command}
	}
	run(exec.CommandContext(ctx, name, args...), response)
}

func (d *LocalDispatcher) tap(ctx context.Context, command *models.Command, response *models.Response) {
	if len(command.Args) < 2 {
		response.Status = "error"
		response.Error = "tap needs x and y"
		return
	}
	x, errX := strconv.Atoi(command.Args[0])
	y, errY := strconv.Atoi(command.Args[1])
	if errX != nil || errY != nil || x <= 0 || y <= 0 {
		response.Status = "error"
		response.Error = "invalid coordinates"
		return
	}

	run(d.adb(ctx, "shell", "input", "tap", strconv.Itoa(x), strconv.Itoa(y)), response)
}

func (d *LocalDispatcher) input(ctx context.Context, command *models.Command, response *models.Response) {
	text := command.Text
	if text == "" {
		text = strings.Join(command.Args, " ")
	}
	if text == "" {
		response.Status = "error"
		response.Error = "empty input text"
		return
	}

	run(d.adb(ctx, "shell", "input", "text", text), response)
}

func (d *LocalDispatcher) adb(ctx context.Context, args ...string) *exec.Cmd {
	bin := d.ADB
	if bin == "" {
		bin = "adb"
	}
	if d.Serial != "" {
		args = append([]string{"-s", d.Serial}, args...)
	}
	return exec.CommandContext(ctx, bin, args...)
}

func run(cmd *exec.Cmd, response *models.Response) {
	cmd.WaitDelay = waitDelay
	output, err := cmd.CombinedOutput()
	response.Result = strings.TrimSpace(string(output))
	if err != nil {
		response.Status = "error"
		response.Error = err.Error()
	}
}

// wait 等待 Timeout 秒，或第一个参数指定的秒数，默认1秒
func wait(ctx context.Context, command *models.Command, response *models.Response) {
	seconds := 1
	if command.Timeout > 0 {
		seconds = command.Timeout
	} else if len(command.Args) > 0 {
		if n, err := strconv.Atoi(command.Args[0]); err == nil && n >= 0 {
			seconds = n
		}
	}

	timer := time.NewTimer(time.Duration(seconds) * time.Second)
	defer timer.Stop()
	select {
	case <-timer.C:
		response.Result = fmt.Sprintf("waited %d seconds", seconds)
	case <-ctx.Done():
		response.Status = "error"
		response.Error = ctx.Err().Error()
	}
}
