// Package skills 提供规范技能词表，以及从token模型中抽取技能、经验年限、学历和关键词的逻辑。
package skills

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"resume-scorer/internal/textproc"

	"gopkg.in/yaml.v3"
)

// MaxNGram 技能别名允许的最大词数
const MaxNGram = 3

//go:embed skills.yaml
var defaultTaxonomyYAML []byte

// Entry 词表中的一个规范技能
type Entry struct {
	Name        string   `yaml:"name" json:"name"`
	Category    string   `yaml:"category" json:"category"`
	Aliases     []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	AliasesOnly bool     `yaml:"aliases_only,omitempty" json:"aliases_only,omitempty"`
	// CaseSensitive 规范名同时是常见英文单词时，规范名只按原文大小写匹配，别名不受影响
	CaseSensitive bool `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
}

type taxonomyFile struct {
	Skills []Entry `yaml:"skills"`
}

// Taxonomy 进程级只读技能词表，构建后不再修改，可被并发读取
type Taxonomy struct {
	entries    []Entry
	exact      map[string]string // 规范化别名 -> 规范名
	cased      map[string]string // 区分大小写的别名 -> 要求的原文写法
	categories map[string]string
	maxWords   int
}

// NewTaxonomy 用给定的分词器规范化所有别名并建立索引
func NewTaxonomy(entries []Entry, normalizer *textproc.Normalizer) (*Taxonomy, error) {
	if normalizer == nil {
		return nil, fmt.Errorf("normalizer 不能为空")
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("技能词表为空")
	}

	t := &Taxonomy{
		entries:    make([]Entry, 0, len(entries)),
		exact:      make(map[string]string),
		cased:      make(map[string]string),
		categories: make(map[string]string, len(entries)),
	}

	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("技能名不能为空")
		}
		if _, dup := t.categories[name]; dup {
			return nil, fmt.Errorf("技能 '%s' 重复定义", name)
		}
		t.categories[name] = e.Category

		phrases := make([]string, 0, len(e.Aliases)+1)
		if !e.AliasesOnly {
			phrases = append(phrases, name)
		}
		phrases = append(phrases, e.Aliases...)

		for _, phrase := range phrases {
			tokens := normalizer.Phrase(phrase)
			words := surfaceWords(tokens)
			if len(words) == 0 {
				continue
			}
			if len(words) > MaxNGram {
				return nil, fmt.Errorf("技能 '%s' 的别名 '%s' 超过 %d 个词", name, phrase, MaxNGram)
			}
			key := strings.Join(words, " ")
			if owner, ok := t.exact[key]; ok && owner != name {
				return nil, fmt.Errorf("别名 '%s' 同时属于 '%s' 和 '%s'", phrase, owner, name)
			}
			t.exact[key] = name
			if e.CaseSensitive && strings.TrimSpace(phrase) == name {
				t.cased[key] = strings.Join(originalWords(tokens), " ")
			}
			if len(words) > t.maxWords {
				t.maxWords = len(words)
			}
		}

		t.entries = append(t.entries, Entry{
			Name:          name,
			Category:      e.Category,
			Aliases:       append([]string(nil), e.Aliases...),
			AliasesOnly:   e.AliasesOnly,
			CaseSensitive: e.CaseSensitive,
		})
	}

	sort.Slice(t.entries, func(i, j int) bool { return t.entries[i].Name < t.entries[j].Name })
	return t, nil
}

// ParseTaxonomyYAML 从YAML内容构建词表
func ParseTaxonomyYAML(data []byte, normalizer *textproc.Normalizer) (*Taxonomy, error) {
	var file taxonomyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("解析技能词表失败: %w", err)
	}
	return NewTaxonomy(file.Skills, normalizer)
}

// LoadTaxonomyFile 从YAML文件构建词表
func LoadTaxonomyFile(path string, normalizer *textproc.Normalizer) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取技能词表文件 '%s' 失败: %w", path, err)
	}
	return ParseTaxonomyYAML(data, normalizer)
}

// DefaultEntries 返回内置词表的条目
func DefaultEntries() ([]Entry, error) {
	var file taxonomyFile
	if err := yaml.Unmarshal(defaultTaxonomyYAML, &file); err != nil {
		return nil, fmt.Errorf("解析内置技能词表失败: %w", err)
	}
	return file.Skills, nil
}

// DefaultTaxonomy 构建内置词表
func DefaultTaxonomy(normalizer *textproc.Normalizer) (*Taxonomy, error) {
	return ParseTaxonomyYAML(defaultTaxonomyYAML, normalizer)
}

// Lookup 查找一个n-gram对应的规范技能名
func (t *Taxonomy) Lookup(tokens []textproc.Token) (string, bool) {
	if len(tokens) == 0 || len(tokens) > t.maxWords {
		return "", false
	}
	words := surfaceWords(tokens)
	key := strings.Join(words, " ")
	if name, ok := t.exact[key]; ok {
		if want, cased := t.cased[key]; cased && strings.Join(originalWords(tokens), " ") != want {
			return "", false
		}
		return name, true
	}
	// 只做复数到单数的单向兜底
	if skey := singularKey(words); skey != key {
		if _, cased := t.cased[skey]; !cased {
			if name, ok := t.exact[skey]; ok {
				return name, true
			}
		}
	}
	return "", false
}

// MaxWords 词表中最长别名的词数
func (t *Taxonomy) MaxWords() int {
	return t.maxWords
}

// Len 规范技能数量
func (t *Taxonomy) Len() int {
	return len(t.entries)
}

// Category 返回技能分类
func (t *Taxonomy) Category(name string) string {
	return t.categories[name]
}

// Contains 判断是否为规范技能名
func (t *Taxonomy) Contains(name string) bool {
	_, ok := t.categories[name]
	return ok
}

// Entries 返回按名称排序的条目副本
func (t *Taxonomy) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = e
		out[i].Aliases = append([]string(nil), e.Aliases...)
	}
	return out
}

func surfaceWords(tokens []textproc.Token) []string {
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = tok.Surface
	}
	return words
}

func originalWords(tokens []textproc.Token) []string {
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = tok.Original
	}
	return words
}

// singularKey 去掉英文复数词尾，用于 "microservices"/"microservice" 这类写法的兜底匹配
func singularKey(words []string) string {
	out := make([]string, len(words))
	for i, w := range words {
		if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
			w = w[:len(w)-1]
		}
		out[i] = w
	}
	return strings.Join(out, " ")
}
