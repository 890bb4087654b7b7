package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mbt_agent/pkg/agent"
	"mbt_agent/pkg/api"
	"mbt_agent/pkg/config"
	"mbt_agent/pkg/executor"
	"mbt_agent/pkg/logging"
	"mbt_agent/pkg/models"
	"mbt_agent/pkg/mqtt"
	"mbt_agent/pkg/msglog"
	"mbt_agent/pkg/transport"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	cfg          = config.LoadConfig()
	fetchSummary bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mbt-agent",
		Short: "MBT remote command agent",
		Long:  "启动模型执行，轮询服务器下发的命令并在本地或设备上执行，上报执行结果",
		RunE:  run,
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&cfg.ServerURL, "server", "s", cfg.ServerURL, "模型执行服务器地址")
	flags.StringVarP(&cfg.ModelName, "model", "m", cfg.ModelName, "模型名称")
	flags.StringVar(&cfg.StatDesc, "desc", cfg.StatDesc, "执行描述，默认自动生成")
	flags.DurationVar(&cfg.ModelStartWait, "start-wait", cfg.ModelStartWait, "获取代理ID前的等待时间")
	flags.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "空轮询后的等待时间")
	flags.IntVar(&cfg.MaxIdlePolls, "max-idle-polls", cfg.MaxIdlePolls, "连续空轮询上限，0 不限制")
	flags.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "单次请求超时")
	flags.BoolVarP(&cfg.Debug, "debug", "d", cfg.Debug, "记录发送的请求地址")
	flags.IntVar(&cfg.MsgMax, "msg-max", cfg.MsgMax, "消息日志容量")
	flags.StringVarP(&cfg.BindingsFile, "bindings", "b", cfg.BindingsFile, "动作绑定文件")
	flags.StringVar(&cfg.DeviceID, "device", cfg.DeviceID, "目标设备ID，非空时通过MQTT下发命令")
	flags.StringVar(&cfg.APIAddr, "api", cfg.APIAddr, "状态接口监听地址，如 :8080")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "日志级别")
	flags.BoolVar(&fetchSummary, "summary", false, "结束后获取执行汇总")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logging.New("main", logging.Level(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := executor.NewRegistry(logging.New("executor"))
	registry.RegisterBuiltins()

	if cfg.BindingsFile != "" {
		bindings, err := executor.LoadBindings(cfg.BindingsFile)
		if err != nil {
			return err
		}
		if bindings.DeviceID == "" {
			bindings.DeviceID = cfg.DeviceID
		}

		dispatcher, cleanup, err := newDispatcher(bindings.DeviceID)
		if err != nil {
			return err
		}
		defer cleanup()

		bindings.Register(registry, dispatcher)
		for _, name := range bindings.Names() {
			log.WithField("action", name).Debug(bindings.Actions[name].Describe())
		}
	}
	log.Infof("available actions: %v", registry.List())

	session := agent.New(
		transport.NewHTTPTransport(cfg.HTTPTimeout),
		agent.WithLogger(logging.New("agent")),
	)
	runner := agent.NewRunner(session, registry, logging.New("runner"))
	runner.PollInterval = cfg.PollInterval
	runner.MaxIdlePolls = cfg.MaxIdlePolls
	runner.FetchSummary = fetchSummary

	req := &models.ExecutionRequest{
		SvrURL:         cfg.ServerURL,
		ModelName:      cfg.ModelName,
		StatDesc:       cfg.StatDesc,
		ModelStartWait: cfg.ModelStartWait,
		Debug:          cfg.Debug,
		MsgMax:         cfg.MsgMax,
		Messages:       msglog.New(),
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	var result *agent.RunResult
	g.Go(func() error {
		defer cancelRun()
		var err error
		result, err = runner.Run(runCtx, req)
		return err
	})

	if cfg.APIAddr != "" {
		server := api.NewServer(session, registry)
		g.Go(func() error {
			return server.Run(runCtx, cfg.APIAddr)
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Cause(err) == context.Canceled {
			log.Info("agent interrupted")
			return nil
		}
		log.WithError(err).Error("agent failed")
		return err
	}

	log.WithField("agent_id", result.AgentID).Infof("execution finished, %d commands executed", result.Commands)
	if result.Summary != "" {
		log.Infof("summary: %s", result.Summary)
	}
	return nil
}

// newDispatcher 设备ID非空时经MQTT下发命令，否则在本机执行
func newDispatcher(deviceID string) (executor.Dispatcher, func(), error) {
	if deviceID == "" {
		return &executor.LocalDispatcher{}, func() {}, nil
	}

	client := mqtt.NewClient(cfg)
	dispatcher := executor.NewMQTTDispatcher(client, deviceID, 30*time.Second)
	client.SetResponseHandler(dispatcher.HandleResponse)
	if err := client.Connect(); err != nil {
		return nil, nil, err
	}
	return dispatcher, client.Disconnect, nil
}
