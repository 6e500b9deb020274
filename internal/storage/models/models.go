package models

import (
	"time"

	"gorm.io/datatypes"
)

// Skill 技能词表中的一个规范技能
type Skill struct {
	ID            uint64         `gorm:"primaryKey;autoIncrement"`
	Name          string         `gorm:"type:varchar(128);not null;uniqueIndex:idx_skills_name_unique"`
	Category      string         `gorm:"type:varchar(64);not null;index:idx_skills_category"`
	AliasesJSON   datatypes.JSON `gorm:"type:json"`     // 别名数组，例如 ["golang", "go lang"]
	AliasesOnly   bool           `gorm:"default:false"` // 只按别名匹配，规范名本身是常用词时使用
	CaseSensitive bool           `gorm:"default:false"` // 规范名只按原文大小写匹配
	Enabled       bool           `gorm:"default:true;index:idx_skills_enabled"`
	CreatedAt     time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt     time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Skill) TableName() string {
	return "skills"
}
