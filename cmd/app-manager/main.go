package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/germanramos/hydra-app-manager/internal/config"
	"github.com/germanramos/hydra-app-manager/internal/hoststat"
	"github.com/germanramos/hydra-app-manager/internal/poller"
	"github.com/germanramos/hydra-app-manager/internal/publisher"
	"github.com/germanramos/hydra-app-manager/internal/reporter"
	"github.com/germanramos/hydra-app-manager/internal/source"
	"github.com/germanramos/hydra-app-manager/internal/statusapi"
	"github.com/germanramos/hydra-app-manager/internal/workerpool"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	programName := filepath.Base(os.Args[0])

	// 解析命令行参数
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	configFile := fs.String("config", "", "配置文件路径")
	verbose := fs.Bool("v", false, "输出调试日志")
	showVersion := fs.Bool("version", false, "显示版本")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Printf("%s %s\n", programName, version)
		return 0
	}

	configPath := *configFile
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	// 加载配置，配置错误在进入循环前终止进程
	appConfig, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		fmt.Fprintf(os.Stderr, "%*s  for help use --help\n", len(programName), "")
		return 2
	}
	if *verbose {
		appConfig.Log.Level = config.LogLevelDebug
	}

	// 初始化日志
	logger, err := config.NewLogger(appConfig.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: 初始化日志失败: %v\n", programName, err)
		return 1
	}
	defer logger.Sync()

	logger.Info("App Manager Starting...",
		zap.String("version", version),
		zap.String("config", configPath),
		zap.String("log_file", appConfig.Log.File),
		zap.String("app_id", appConfig.Main.AppID),
		zap.Int("servers", len(appConfig.Servers)),
		zap.Strings("hydras", appConfig.Hydras),
		zap.Duration("interval", appConfig.SleepInterval()),
	)

	if unknown := appConfig.Main.UnknownStrategies(); len(unknown) > 0 {
		logger.Warn("未知的策略，将原样发布", zap.Strings("strategies", unknown))
	}

	// 等待信号以优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := workerpool.New(appConfig.Poll.Workers, logger)
	if err != nil {
		logger.Error("创建协程池失败", zap.Error(err))
		return 1
	}
	defer pool.Release()

	// 服务器来源：配置文件或etcd
	static := source.NewStaticSource(appConfig)
	var src source.Source = static
	if appConfig.Etcd.Enabled {
		etcdSource := source.NewEtcdSource(appConfig.Etcd, static, logger)
		if err := etcdSource.Connect(); err != nil {
			logger.Error("连接etcd失败", zap.Error(err))
			return 1
		}
		defer etcdSource.Close()

		if err := etcdSource.Start(ctx); err != nil {
			logger.Error("加载etcd服务器列表失败", zap.Error(err))
			return 1
		}
		src = etcdSource
	}

	// 配置热加载只替换下一次迭代使用的快照
	if err := config.Watch(configPath, logger, func(cfg *config.Config) {
		static.Update(cfg)
		logger.Info("配置已重新加载",
			zap.Int("servers", len(cfg.Servers)),
			zap.Strings("hydras", cfg.Hydras))
	}); err != nil {
		logger.Warn("无法监听配置文件", zap.Error(err))
	}

	builder := reporter.NewBuilder(poller.New(appConfig.Poll.Timeout, logger), pool)
	pub := publisher.New(appConfig.Publish.Timeout, logger)
	rep := reporter.New(src, builder, pub, pool, appConfig.SleepInterval(), logger)

	var statusServer *statusapi.Server
	if appConfig.StatusAPI.Enabled {
		statusServer = statusapi.NewServer(appConfig.StatusAPI, rep, hoststat.NewCollector(0), logger)
		if err := statusServer.Start(); err != nil {
			logger.Error("启动状态API失败", zap.Error(err))
			return 1
		}
	}

	if err := rep.Run(ctx); err != nil {
		logger.Error("报告循环异常退出", zap.Error(err))
	}

	logger.Info("接收到关闭信号，正在优雅关闭...")

	if statusServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("关闭状态API失败", zap.Error(err))
		}
	}

	return 0
}
