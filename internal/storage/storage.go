package storage

import (
	"context"
	"fmt"
	"log"
	"strings"

	"resume-scorer/internal/config"
	"resume-scorer/internal/skills"
	"resume-scorer/internal/textproc"
)

// Storage 存储管理器，聚合所有可选的外部依赖，未配置的组件为nil
type Storage struct {
	// 结果缓存
	Redis *Redis

	// 技能词表数据库
	MySQL *MySQL

	// 队列传输
	RabbitMQ *RabbitMQ
}

// Options 控制初始化哪些组件
type Options struct {
	WithRedis    bool
	WithMySQL    bool
	WithRabbitMQ bool
}

// OptionsFromConfig 按配置推断需要的组件
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		WithRedis: cfg.Redis.Enabled && cfg.Redis.Address != "",
		WithMySQL: cfg.Taxonomy.Source == "mysql",
	}
}

// NewStorage 创建存储管理器；缓存初始化失败只记录警告，词表库和队列失败直接返回错误
func NewStorage(ctx context.Context, cfg *config.Config, opts Options) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var err error

	if opts.WithRedis {
		log.Printf("初始化Redis at %s...", cfg.Redis.Address)
		storage.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			log.Printf("警告: 初始化Redis失败，结果缓存不可用: %v", err)
			storage.Redis = nil
		}
	}

	var initErrors []string
	if opts.WithMySQL {
		log.Printf("初始化MySQL...")
		storage.MySQL, err = NewMySQL(&cfg.MySQL)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		}
	}

	if opts.WithRabbitMQ {
		log.Printf("初始化RabbitMQ...")
		storage.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err == nil {
			err = storage.RabbitMQ.EnsureQueue(cfg.RabbitMQ.RequestQueue)
		}
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	}

	if len(initErrors) > 0 {
		storage.Close()
		return nil, fmt.Errorf("存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}
	return storage, nil
}

// Close 关闭所有已初始化的组件
func (s *Storage) Close() {
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Printf("关闭Redis连接失败: %v", err)
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			log.Printf("关闭MySQL连接失败: %v", err)
		}
	}
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Printf("关闭RabbitMQ连接失败: %v", err)
		}
	}
}

// LoadTaxonomy 按 taxonomy.source 构建词表：embedded、file 或 mysql
func LoadTaxonomy(ctx context.Context, cfg config.TaxonomyConfig, db *MySQL, normalizer *textproc.Normalizer) (*skills.Taxonomy, error) {
	switch cfg.Source {
	case "", "embedded":
		return skills.DefaultTaxonomy(normalizer)
	case "file":
		return skills.LoadTaxonomyFile(cfg.Path, normalizer)
	case "mysql":
		if db == nil {
			return nil, fmt.Errorf("taxonomy.source=mysql 但MySQL未初始化")
		}
		entries, err := db.LoadTaxonomyEntries(ctx, cfg.SeedMySQL)
		if err != nil {
			return nil, err
		}
		return skills.NewTaxonomy(entries, normalizer)
	default:
		return nil, fmt.Errorf("未知的 taxonomy.source: %s", cfg.Source)
	}
}
