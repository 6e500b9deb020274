package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resume-scorer/internal/api/handler"
	"resume-scorer/internal/api/router"
	"resume-scorer/internal/config"
	appCoreLogger "resume-scorer/internal/logger"
	"resume-scorer/internal/processor"
	"resume-scorer/internal/storage"
	"resume-scorer/internal/textproc"
	"resume-scorer/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

var (
	version     = "1.0.0"         //nolint:gochecknoglobals
	serviceName = "resume-scorer" //nolint:gochecknoglobals
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}
	if closer := initLogger(cfg); closer != nil {
		defer closer.Close()
	}
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = serviceName
	}
	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing, version)
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}

	storageManager, err := storage.NewStorage(ctx, cfg, storage.OptionsFromConfig(cfg))
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()

	normalizer := textproc.NewNormalizer(textproc.WithStemming(cfg.Scoring.Stemming))
	taxonomy, err := storage.LoadTaxonomy(ctx, cfg.Taxonomy, storageManager.MySQL, normalizer)
	if err != nil {
		glog.Fatalf("加载技能词表失败: %v", err)
	}
	glog.Infof("技能词表加载成功，来源: %s，共 %d 个技能", cfg.Taxonomy.Source, taxonomy.Len())

	var cache processor.ResultCache
	if storageManager.Redis != nil {
		cache = storageManager.Redis
		glog.Info("已启用Redis结果缓存")
	}

	engine, err := processor.NewEngineFromConfig(ctx, cfg, taxonomy, cache, appCoreLogger.NewStdLogger)
	if err != nil {
		glog.Fatalf("初始化分析引擎失败: %v", err)
	}
	glog.Infof("分析引擎初始化成功，语义增强: %v", engine.EnhancementAvailable())

	analysisHandler := handler.NewAnalysisHandler(cfg, engine,
		handler.WithHandlerLogger(appCoreLogger.NewStdLogger("[AnalysisHandler] ")),
	)

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		tracer,
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		// 请求体上限为文档上限加1MB
		server.WithMaxRequestBodySize(int(cfg.MaxDocumentBytes())+1<<20),
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		glog.CtxInfof(c, "%s %s -> %d (%s)", string(ctx.Method()), string(ctx.Path()), ctx.Response.StatusCode(), time.Since(start))
	})

	router.RegisterRoutes(h, analysisHandler, cfg.Auth)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Errorf("关闭链路追踪失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

func initLogger(cfg *config.Config) io.Closer {
	closer := appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	})

	appCoreLogger.Logger = appCoreLogger.Logger.With().
		Str("app", serviceName).
		Str("version", version).
		Logger()

	// Hertz 的 hlog 通过适配器写入同一个 zerolog 实例
	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	if cfg.Logger.Level == "debug" {
		glog.SetLevel(glog.LevelDebug)
	} else {
		glog.SetLevel(glog.LevelInfo)
	}
	return closer
}
