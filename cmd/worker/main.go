// worker 从RabbitMQ消费分析请求，并通过 reply_to 回复结果
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"resume-scorer/internal/config"
	appCoreLogger "resume-scorer/internal/logger"
	"resume-scorer/internal/processor"
	"resume-scorer/internal/storage"
	"resume-scorer/internal/textproc"
	"resume-scorer/internal/tracing"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

var (
	version     = "1.0.0"                //nolint:gochecknoglobals
	serviceName = "resume-scorer-worker" //nolint:gochecknoglobals
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("加载配置失败")
	}
	closer := appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	})
	if closer != nil {
		defer closer.Close()
	}
	appCoreLogger.Logger = appCoreLogger.Logger.With().Str("app", serviceName).Str("version", version).Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = serviceName
	}
	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing, version)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("初始化链路追踪失败")
	}

	opts := storage.OptionsFromConfig(cfg)
	opts.WithRabbitMQ = true
	storageManager, err := storage.NewStorage(ctx, cfg, opts)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()

	taxonomy, err := storage.LoadTaxonomy(ctx, cfg.Taxonomy, storageManager.MySQL,
		textproc.NewNormalizer(textproc.WithStemming(cfg.Scoring.Stemming)))
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("加载技能词表失败")
	}

	var cache processor.ResultCache
	if storageManager.Redis != nil {
		cache = storageManager.Redis
	}
	engine, err := processor.NewEngineFromConfig(ctx, cfg, taxonomy, cache, appCoreLogger.NewStdLogger)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("初始化分析引擎失败")
	}

	handler := processor.NewQueueDeliveryHandler(engine, storageManager.RabbitMQ, &appCoreLogger.Logger)
	done, err := storageManager.RabbitMQ.StartConsumer(ctx, cfg.RabbitMQ.RequestQueue,
		cfg.RabbitMQ.PrefetchCount, cfg.RabbitMQ.ConsumerWorkers, handler)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("启动队列消费者失败")
	}
	appCoreLogger.Info().
		Str("queue", cfg.RabbitMQ.RequestQueue).
		Int("workers", cfg.RabbitMQ.ConsumerWorkers).
		Bool("enhancement", engine.EnhancementAvailable()).
		Msg("分析worker已启动")

	select {
	case <-ctx.Done():
		appCoreLogger.Info().Msg("接收到终止信号，等待进行中的请求完成...")
	case <-done:
		appCoreLogger.Warn().Msg("消费通道已关闭，worker退出")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancelShutdown()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		appCoreLogger.Warn().Msg("等待消费者退出超时")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		appCoreLogger.Error().Err(err).Msg("关闭链路追踪失败")
	}
	appCoreLogger.Info().Msg("worker已退出")
}
