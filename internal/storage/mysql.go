package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"resume-scorer/internal/config"
	"resume-scorer/internal/skills"
	"resume-scorer/internal/storage/models"
	"resume-scorer/internal/tracing"
	"resume-scorer/pkg/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("resume-scorer/storage/mysql")

type spanCtxKey struct{}

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}
	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		newCtx, span := p.tracer.Start(ctx, fmt.Sprintf("%s %s", operation, tableName),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)
		db.Statement.Context = context.WithValue(newCtx, spanCtxKey{}, span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if db.Statement.Context == nil {
			return
		}
		span, ok := db.Statement.Context.Value(spanCtxKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if sql := db.Statement.SQL.String(); sql != "" {
			span.SetAttributes(attribute.String("db.statement", tracing.SafeSQL(sql)))
		}

		// ErrRecordNotFound 属于正常业务情况
		switch {
		case db.Error == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(db.Error, gorm.ErrRecordNotFound):
			span.SetAttributes(attribute.String("error.type", "record_not_found"))
			span.SetStatus(codes.Ok, "record not found")
		default:
			tracing.RecordErrorWithInfo(span, db.Error, tracing.ErrorTypeDB,
				attribute.String("db.sql.table", db.Statement.Table))
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// MySQL 技能词表的关系数据库来源
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// BuildDSN 生成 go-sql-driver 格式的连接串
func BuildDSN(cfg *config.MySQLConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.ReadTimeoutSeconds)
}

func gormLogLevel(level int) logger.LogLevel {
	switch level {
	case 1:
		return logger.Silent
	case 2:
		return logger.Error
	case 3:
		return logger.Warn
	default:
		return logger.Info
	}
}

// NewMySQL 创建MySQL客户端并迁移 skills 表
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	db, err := gorm.Open(mysql.Open(BuildDSN(cfg)), &gorm.Config{
		Logger:      logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg}
	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// NewMySQLWithDB 使用已有的 gorm 连接
func NewMySQLWithDB(db *gorm.DB) *MySQL {
	return &MySQL{db: db}
}

func (m *MySQL) autoMigrateSchema() error {
	silentDB := m.db.Session(&gorm.Session{Logger: logger.Default.LogMode(logger.Silent)})
	return silentDB.AutoMigrate(&models.Skill{})
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListSkillEntries 读取所有启用的技能，按ID顺序返回
func (m *MySQL) ListSkillEntries(ctx context.Context) ([]skills.Entry, error) {
	var rows []models.Skill
	if err := m.db.WithContext(ctx).Where("enabled = ?", true).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询技能词表失败: %w", err)
	}
	return SkillRowsToEntries(rows), nil
}

// CountSkills 返回 skills 表的行数
func (m *MySQL) CountSkills(ctx context.Context) (int64, error) {
	var n int64
	if err := m.db.WithContext(ctx).Model(&models.Skill{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("统计技能词表失败: %w", err)
	}
	return n, nil
}

// SeedSkills 写入词表条目，已存在的同名技能保持不变
func (m *MySQL) SeedSkills(ctx context.Context, entries []skills.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := EntriesToSkillRows(entries)
	err := m.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, 100).Error
	if err != nil {
		return fmt.Errorf("写入技能词表失败: %w", err)
	}
	return nil
}

// LoadTaxonomyEntries 读取词表；表为空且 seed 为真时先写入内置词表
func (m *MySQL) LoadTaxonomyEntries(ctx context.Context, seed bool) ([]skills.Entry, error) {
	if seed {
		n, err := m.CountSkills(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			defaults, err := skills.DefaultEntries()
			if err != nil {
				return nil, err
			}
			if err := m.SeedSkills(ctx, defaults); err != nil {
				return nil, err
			}
			log.Printf("技能词表为空，已写入 %d 条内置技能", len(defaults))
		}
	}

	entries, err := m.ListSkillEntries(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("MySQL中没有可用的技能词表")
	}
	return entries, nil
}

// SkillRowsToEntries 数据库行转换为词表条目
func SkillRowsToEntries(rows []models.Skill) []skills.Entry {
	entries := make([]skills.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, skills.Entry{
			Name:          r.Name,
			Category:      r.Category,
			Aliases:       utils.ConvertJSONToArray(r.AliasesJSON),
			AliasesOnly:   r.AliasesOnly,
			CaseSensitive: r.CaseSensitive,
		})
	}
	return entries
}

// EntriesToSkillRows 词表条目转换为数据库行
func EntriesToSkillRows(entries []skills.Entry) []models.Skill {
	rows := make([]models.Skill, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, models.Skill{
			Name:          e.Name,
			Category:      e.Category,
			AliasesJSON:   utils.ConvertArrayToJSON(e.Aliases),
			AliasesOnly:   e.AliasesOnly,
			CaseSensitive: e.CaseSensitive,
			Enabled:       true,
		})
	}
	return rows
}
