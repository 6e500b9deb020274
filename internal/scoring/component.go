package scoring

import (
	"math"
	"sort"

	"resume-scorer/internal/types"
)

// Weights 五个子分数在总分中的权重
type Weights struct {
	Semantic   float64
	Skills     float64
	Experience float64
	Education  float64
	Keywords   float64
}

// DefaultWeights 默认权重表，合计为1
var DefaultWeights = Weights{
	Semantic:   0.30,
	Skills:     0.30,
	Experience: 0.15,
	Education:  0.10,
	Keywords:   0.15,
}

// Sum 权重之和
func (w Weights) Sum() float64 {
	return w.Semantic + w.Skills + w.Experience + w.Education + w.Keywords
}

// Normalized 返回归一化到合计为1的权重；非法权重回退到默认值
func (w Weights) Normalized() Weights {
	sum := w.Sum()
	if sum <= 0 || w.Semantic < 0 || w.Skills < 0 || w.Experience < 0 || w.Education < 0 || w.Keywords < 0 {
		return DefaultWeights
	}
	return Weights{
		Semantic:   w.Semantic / sum,
		Skills:     w.Skills / sum,
		Experience: w.Experience / sum,
		Education:  w.Education / sum,
		Keywords:   w.Keywords / sum,
	}
}

// Overall 按权重合成总分
func (w Weights) Overall(s types.ScoreBreakdown) float64 {
	return Clamp(s.Semantic*w.Semantic +
		s.Skills*w.Skills +
		s.Experience*w.Experience +
		s.Education*w.Education +
		s.Keywords*w.Keywords)
}

// 学历差距的部分得分表
const (
	educationMeets        = 100.0
	educationOneBelow     = 60.0
	educationTwoOrMore    = 30.0
	educationNoneRequired = 20.0
)

// Assessment 组件打分的完整结果
type Assessment struct {
	Scores          types.ScoreBreakdown
	MatchedSkills   []string // 按JD重要性排序
	MissingSkills   []string // 按JD重要性排序
	MissingKeywords []string // JD高频关键词中简历未覆盖的部分（原始写法）
}

// ComponentScorer 计算五个子分数和总分
type ComponentScorer struct {
	weights     Weights
	topKeywords int
}

// ComponentOption ComponentScorer 的函数选项
type ComponentOption func(*ComponentScorer)

// WithWeights 设置权重表，会被归一化
func WithWeights(w Weights) ComponentOption {
	return func(c *ComponentScorer) {
		c.weights = w.Normalized()
	}
}

// WithTopKeywords 设置JD关键词取前N个
func WithTopKeywords(n int) ComponentOption {
	return func(c *ComponentScorer) {
		if n > 0 {
			c.topKeywords = n
		}
	}
}

// NewComponentScorer 创建组件打分器
func NewComponentScorer(opts ...ComponentOption) *ComponentScorer {
	c := &ComponentScorer{
		weights:     DefaultWeights,
		topKeywords: 20,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Weights 返回生效的权重表
func (c *ComponentScorer) Weights() Weights {
	return c.weights
}

// Assess 根据两个文档的抽取结果和语义分数计算全部分数。各子分数先保留一位小数，总分由舍入后的子分数合成
func (c *ComponentScorer) Assess(resume, jd *types.ExtractedProfile, semantic float64) *Assessment {
	matched, missing := MatchSkills(resume, jd)
	topJD := TopKeywords(jd, c.topKeywords)

	scores := types.ScoreBreakdown{
		Semantic:   Round1(Clamp(semantic)),
		Skills:     Round1(SkillsScore(len(matched), len(jd.Skills))),
		Experience: Round1(ExperienceScore(resume.YearsOfExperience, jd.YearsOfExperience)),
		Education:  Round1(EducationScore(resume.Education, jd.Education)),
		Keywords:   Round1(KeywordsScore(resume, topJD)),
	}
	scores.Overall = Round1(c.weights.Overall(scores))

	resumeKeywords := resume.KeywordSet()
	var missingKeywords []string
	for _, k := range topJD {
		if _, ok := resumeKeywords[k.Term]; !ok {
			missingKeywords = append(missingKeywords, k.Display)
		}
	}

	return &Assessment{
		Scores:          scores,
		MatchedSkills:   matched,
		MissingSkills:   missing,
		MissingKeywords: missingKeywords,
	}
}

// RankSkills 按JD重要性排序：出现次数多的在前，次数相同则先出现的在前
func RankSkills(profile *types.ExtractedProfile) []types.SkillMention {
	ranked := make([]types.SkillMention, len(profile.Skills))
	copy(ranked, profile.Skills)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].FirstIndex < ranked[j].FirstIndex
	})
	return ranked
}

// MatchSkills 将JD技能划分为已匹配和缺失两部分，两者互斥且都是JD技能的子集
func MatchSkills(resume, jd *types.ExtractedProfile) (matched, missing []string) {
	have := resume.SkillSet()
	matched = []string{}
	missing = []string{}
	for _, s := range RankSkills(jd) {
		if _, ok := have[s.Name]; ok {
			matched = append(matched, s.Name)
		} else {
			missing = append(missing, s.Name)
		}
	}
	return matched, missing
}

// SkillsScore 100 * |命中| / max(1, |JD技能|)，JD没有技能要求时为100
func SkillsScore(matched, required int) float64 {
	if required == 0 {
		return 100
	}
	return Clamp(100 * float64(matched) / math.Max(1, float64(required)))
}

// ExperienceScore JD未要求年限时为100；达到要求为100；否则按比例给分
func ExperienceScore(resumeYears, jdYears *float64) float64 {
	if jdYears == nil || *jdYears <= 0 {
		return 100
	}
	have := 0.0
	if resumeYears != nil {
		have = *resumeYears
	}
	if have >= *jdYears {
		return 100
	}
	return Clamp(100 * have / *jdYears)
}

// EducationScore 按学历等级差查表
func EducationScore(resume, required types.EducationLevel) float64 {
	if required == types.EducationNone {
		return 100
	}
	if resume == types.EducationNone {
		return educationNoneRequired
	}
	switch diff := int(resume) - int(required); {
	case diff >= 0:
		return educationMeets
	case diff == -1:
		return educationOneBelow
	default:
		return educationTwoOrMore
	}
}

// TopKeywords 取出现次数最多的前n个关键词，次数相同则先出现的在前
func TopKeywords(profile *types.ExtractedProfile, n int) []types.KeywordMention {
	ranked := make([]types.KeywordMention, len(profile.Keywords))
	copy(ranked, profile.Keywords)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].FirstIndex < ranked[j].FirstIndex
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// KeywordsScore JD高频关键词被简历覆盖的比例，JD没有关键词时为100
func KeywordsScore(resume *types.ExtractedProfile, topJD []types.KeywordMention) float64 {
	if len(topJD) == 0 {
		return 100
	}
	have := resume.KeywordSet()
	hits := 0
	for _, k := range topJD {
		if _, ok := have[k.Term]; ok {
			hits++
		}
	}
	return Clamp(100 * float64(hits) / float64(len(topJD)))
}

// Clamp 将分数限制在[0,100]，NaN视为0
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// Round1 保留一位小数
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
