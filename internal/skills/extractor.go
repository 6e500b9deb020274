package skills

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"resume-scorer/internal/textproc"
	"resume-scorer/internal/types"
)

// maxPlausibleYears 超过该值的"年限"大多是年龄或年份，忽略
const maxPlausibleYears = 50

// 形如 "5 years"、"3+ yrs"、"over 8 years"、"5-7 years" 的年限表达，区间取下限
var yearsPattern = regexp.MustCompile(`\b(\d{1,2}(?:\.\d+)?)\s*\+?\s*(?:(?:-|–|to)\s*\d{1,2}(?:\.\d+)?\s*\+?\s*)?(?:years?|yrs?)\b`)

// 学历关键词，按等级从高到低匹配
var educationPatterns = []struct {
	level    types.EducationLevel
	patterns []*regexp.Regexp
}{
	{types.EducationDoctorate, compileAll(
		`\bph\.?\s?d\b`, `\bdoctorate\b`, `\bdoctoral\b`, `\bdoctor of\b`, `\bd\.phil\b`,
	)},
	{types.EducationMaster, compileAll(
		`\bmaster'?s?\b`, `\bm\.?sc\b`, `\bm\.s\.`, `\bmba\b`, `\bm\.?eng\b`, `\bm\.a\.`, `\bmaster of\b`,
		// 不带点的 "MS" 需要后接 in/of/degree，避免 "MS Office"
		`\bm\.?s\.?\s+(?:in|of|degree)\b`,
	)},
	{types.EducationBachelor, compileAll(
		`\bbachelor'?s?\b`, `\bb\.?sc\b`, `\bb\.s\.`, `\bb\.a\.`, `\bb\.?tech\b`, `\bb\.e\.`, `\bbeng\b`,
		`\bundergraduate\b`, `\bdegrees?\b`,
		`\bb\.?[sa]\.?\s+(?:in|of|degree)\b`,
	)},
}

// 匹配前先移除的写法：否定的学历要求（"no degree required"、"degree not required"）和毫秒时长（"5 ms in"）
var educationNoise = compileAll(
	`\d\s*ms\b`,
	`\b(?:no|not|without|non)[\s-]+(?:\w+'?s?\s+){0,3}?degrees?\b(?:\s+(?:is\s+|are\s+)?(?:required|necessary|needed))?`,
	`\bdegrees?\s+(?:is\s+|are\s+)?(?:not\s+(?:required|necessary|needed)|optional)\b`,
)

// 含 "master" 但与学历无关的头衔
var educationFalsePositives = strings.NewReplacer("scrum master", " ", "master data", " ", "webmaster", " ")

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Extractor 从token模型和原文中抽取 ExtractedProfile，无状态，可并发使用
type Extractor struct {
	taxonomy         *Taxonomy
	minKeywordLength int
}

// ExtractorOption Extractor 的函数选项
type ExtractorOption func(*Extractor)

// WithMinKeywordLength 关键词最短字符数
func WithMinKeywordLength(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.minKeywordLength = n
		}
	}
}

// NewExtractor 创建抽取器，taxonomy 在整个进程生命周期内共享
func NewExtractor(taxonomy *Taxonomy, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		taxonomy:         taxonomy,
		minKeywordLength: 3,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Taxonomy 返回抽取器使用的词表
func (e *Extractor) Taxonomy() *Taxonomy {
	return e.taxonomy
}

// Extract 抽取技能、经验年限、学历和关键词
func (e *Extractor) Extract(model *textproc.TokenModel, text string) *types.ExtractedProfile {
	skills, covered := e.matchSkills(model)
	return &types.ExtractedProfile{
		Skills:            skills,
		YearsOfExperience: ExtractYears(text),
		Education:         ExtractEducation(text),
		Keywords:          e.keywords(model, covered),
	}
}

// matchSkills 在1~3元窗口上查词表。重叠窗口命中不同技能时都计入，同一位置同一技能只计一次
func (e *Extractor) matchSkills(model *textproc.TokenModel) ([]types.SkillMention, []bool) {
	n := model.Len()
	covered := make([]bool, n)
	tokens := model.Tokens()

	var mentions []types.SkillMention
	index := make(map[string]int)

	maxWords := e.taxonomy.MaxWords()
	for i := 0; i < n; i++ {
		seenHere := make(map[string]struct{}, 2)
		for size := 1; size <= maxWords && i+size <= n; size++ {
			name, ok := e.taxonomy.Lookup(tokens[i : i+size])
			if !ok {
				continue
			}
			for k := i; k < i+size; k++ {
				covered[k] = true
			}
			if _, dup := seenHere[name]; dup {
				continue
			}
			seenHere[name] = struct{}{}

			if idx, exists := index[name]; exists {
				mentions[idx].Count++
				continue
			}
			index[name] = len(mentions)
			mentions = append(mentions, types.SkillMention{
				Name:       name,
				Category:   e.taxonomy.Category(name),
				Count:      1,
				FirstIndex: i,
			})
		}
	}
	return mentions, covered
}

// keywords 未被技能覆盖、足够长的token作为关键词，按规范形式去重
func (e *Extractor) keywords(model *textproc.TokenModel, covered []bool) []types.KeywordMention {
	var out []types.KeywordMention
	index := make(map[string]int)

	for i := 0; i < model.Len(); i++ {
		if covered[i] {
			continue
		}
		tok := model.At(i)
		if tok.Compound || utf8.RuneCountInString(tok.Surface) < e.minKeywordLength {
			continue
		}
		if idx, ok := index[tok.Term]; ok {
			out[idx].Count++
			continue
		}
		index[tok.Term] = len(out)
		out = append(out, types.KeywordMention{
			Term:       tok.Term,
			Display:    tok.Surface,
			Count:      1,
			FirstIndex: i,
		})
	}
	return out
}

// ExtractYears 返回文中声明的最大经验年限，没有时返回nil
func ExtractYears(text string) *float64 {
	var best *float64
	for _, m := range yearsPattern.FindAllStringSubmatch(strings.ToLower(text), -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v <= 0 || v > maxPlausibleYears {
			continue
		}
		if best == nil || v > *best {
			val := v
			best = &val
		}
	}
	return best
}

// ExtractEducation 返回文中出现的最高学历
func ExtractEducation(text string) types.EducationLevel {
	s := strings.ToLower(text)
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)
	s = educationFalsePositives.Replace(s)
	for _, re := range educationNoise {
		s = re.ReplaceAllString(s, " ")
	}

	for _, group := range educationPatterns {
		for _, re := range group.patterns {
			if re.MatchString(s) {
				return group.level
			}
		}
	}
	return types.EducationNone
}
