package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resume-scorer/internal/config"
	"resume-scorer/internal/constants"
	"resume-scorer/internal/tracing"
	"resume-scorer/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound is returned when a key is not found in Redis.
var ErrNotFound = redis.Nil

const defaultResultTTL = 10 * time.Minute

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("resume-scorer/storage/redis")

// Redis wraps the Redis client and serves as the analysis result cache
type Redis struct {
	Client    *redis.Client
	config    *config.RedisConfig
	resultTTL time.Duration
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries: cfg.MaxRetries,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return NewRedisWithClient(client, cfg), nil
}

// NewRedisWithClient 用已有的客户端构建缓存，不做连通性检查
func NewRedisWithClient(client *redis.Client, cfg *config.RedisConfig) *Redis {
	ttl := defaultResultTTL
	if cfg != nil {
		ttl = config.GetDuration(cfg.ResultTTL, defaultResultTTL)
	}
	return &Redis{
		Client:    client,
		config:    cfg,
		resultTTL: ttl,
	}
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// ResultTTL 返回分析结果的缓存时间
func (r *Redis) ResultTTL() time.Duration {
	return r.resultTTL
}

// ResultKey 由请求指纹生成缓存键
func ResultKey(fingerprint string) string {
	return fmt.Sprintf(constants.KeyAnalysisResult, fingerprint)
}

// GetResult 读取缓存的分析结果，未命中返回 nil, nil
func (r *Redis) GetResult(ctx context.Context, fingerprint string) (*types.AnalysisResult, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("redis client is not initialized")
	}
	key := ResultKey(fingerprint)
	ctx, span := startRedisSpan(ctx, "GET", key)
	defer span.End()

	data, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, ErrNotFound) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, nil
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return nil, fmt.Errorf("读取缓存结果失败: %w", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))

	result, err := decodeResult(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, err
	}
	return result, nil
}

// SetResult 写入分析结果，过期时间取 redis.result_ttl
func (r *Redis) SetResult(ctx context.Context, fingerprint string, result *types.AnalysisResult) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	if result == nil {
		return fmt.Errorf("结果不能为空")
	}
	data, err := encodeResult(result)
	if err != nil {
		return err
	}

	key := ResultKey(fingerprint)
	ctx, span := startRedisSpan(ctx, "SET", key)
	defer span.End()
	span.SetAttributes(attribute.Int("cache.value_bytes", len(data)))

	if err := r.Client.Set(ctx, key, data, r.resultTTL).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("写入缓存结果失败: %w", err)
	}
	return nil
}

func startRedisSpan(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return redisTracer.Start(ctx, "redis.cache."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemRedis,
			attribute.String("db.operation", op),
			attribute.String("cache.key", tracing.SafeRedisKey(key)),
		),
	)
}

func encodeResult(result *types.AnalysisResult) ([]byte, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("序列化分析结果失败: %w", err)
	}
	return data, nil
}

func decodeResult(data []byte) (*types.AnalysisResult, error) {
	var result types.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("解析缓存结果失败: %w", err)
	}
	return &result, nil
}
