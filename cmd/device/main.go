package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"mbt_agent/pkg/config"
	"mbt_agent/pkg/device"
	"mbt_agent/pkg/executor"
	"mbt_agent/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	cfg      = config.LoadConfig()
	adb      string
	deviceID string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mbt-device",
		Short: "MBT device command executor",
		Long:  "订阅MQTT命令主题，在设备上执行代理下发的命令并返回结果",
		RunE:  run,
	}

	flags := rootCmd.Flags()
	flags.StringVar(&cfg.MQTTBroker, "broker", cfg.MQTTBroker, "MQTT服务器地址")
	flags.StringVar(&cfg.MQTTPort, "port", cfg.MQTTPort, "MQTT服务器端口")
	flags.StringVar(&deviceID, "id", cfg.DeviceID, "设备ID，默认读取设备序列号")
	flags.StringVar(&adb, "adb", "adb", "adb 可执行文件")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "日志级别")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logging.New("main", logging.Level(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if deviceID == "" {
		id, err := device.DetectID(ctx, adb)
		if err != nil {
			return err
		}
		deviceID = id
	}

	dev := device.New(cfg, deviceID, &executor.LocalDispatcher{ADB: adb, Serial: deviceID})
	if err := dev.Connect(); err != nil {
		return err
	}
	log.WithField("device", dev.ID()).Info("device started, waiting for commands")

	<-ctx.Done()

	log.Info("disconnecting")
	dev.Disconnect()
	return nil
}
