package scoring

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"resume-scorer/internal/types"
)

// Dimension 子分数维度
type Dimension string

const (
	DimensionSkills     Dimension = "skills"
	DimensionExperience Dimension = "experience"
	DimensionEducation  Dimension = "education"
	DimensionKeywords   Dimension = "keywords"
	DimensionSemantic   Dimension = "semantic"
)

// dimensionOrder 分数相同时的固定先后顺序
var dimensionOrder = []Dimension{
	DimensionSkills,
	DimensionExperience,
	DimensionEducation,
	DimensionKeywords,
	DimensionSemantic,
}

func dimensionScore(s types.ScoreBreakdown, d Dimension) float64 {
	switch d {
	case DimensionSkills:
		return s.Skills
	case DimensionExperience:
		return s.Experience
	case DimensionEducation:
		return s.Education
	case DimensionKeywords:
		return s.Keywords
	default:
		return s.Semantic
	}
}

const (
	maxSkillsInStrength  = 5
	maxKeywordsInAdvice  = 5
	maxJudgementItems    = 2
	polishRecommendation = "Your resume already aligns well with this role. Tailor the summary to this team and quantify your most recent achievements to stand out further."
)

// Recommender 根据分数差距与缺失技能生成优势与改进建议
type Recommender struct {
	strengthThreshold       float64
	maxStrengths            int
	recommendationThreshold float64
	maxMissingSkills        int
	maxRecommendations      int
}

// RecommenderOption Recommender 的函数选项
type RecommenderOption func(*Recommender)

// WithStrengthThreshold 优势的最低分数
func WithStrengthThreshold(v float64) RecommenderOption {
	return func(r *Recommender) {
		r.strengthThreshold = v
	}
}

// WithMaxStrengths 优势条数上限
func WithMaxStrengths(n int) RecommenderOption {
	return func(r *Recommender) {
		if n > 0 {
			r.maxStrengths = n
		}
	}
}

// WithRecommendationThreshold 低于该分数的维度会得到针对性建议
func WithRecommendationThreshold(v float64) RecommenderOption {
	return func(r *Recommender) {
		r.recommendationThreshold = v
	}
}

// WithMaxMissingSkills 缺失技能建议条数上限
func WithMaxMissingSkills(n int) RecommenderOption {
	return func(r *Recommender) {
		if n > 0 {
			r.maxMissingSkills = n
		}
	}
}

// WithMaxRecommendations 建议总条数上限
func WithMaxRecommendations(n int) RecommenderOption {
	return func(r *Recommender) {
		if n > 0 {
			r.maxRecommendations = n
		}
	}
}

// NewRecommender 创建建议生成器
func NewRecommender(opts ...RecommenderOption) *Recommender {
	r := &Recommender{
		strengthThreshold:       70,
		maxStrengths:            3,
		recommendationThreshold: 60,
		maxMissingSkills:        5,
		maxRecommendations:      8,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Feedback 优势与建议
type Feedback struct {
	Strengths       []string
	Recommendations []string
}

// Generate 生成优势与建议列表
func (r *Recommender) Generate(a *Assessment, resume, jd *types.ExtractedProfile) Feedback {
	return Feedback{
		Strengths:       r.strengths(a, resume, jd),
		Recommendations: r.recommendations(a, resume, jd),
	}
}

func (r *Recommender) strengths(a *Assessment, resume, jd *types.ExtractedProfile) []string {
	dims := make([]Dimension, 0, len(dimensionOrder))
	for _, d := range dimensionOrder {
		if dimensionScore(a.Scores, d) >= r.strengthThreshold {
			dims = append(dims, d)
		}
	}
	sort.SliceStable(dims, func(i, j int) bool {
		return dimensionScore(a.Scores, dims[i]) > dimensionScore(a.Scores, dims[j])
	})
	if len(dims) > r.maxStrengths {
		dims = dims[:r.maxStrengths]
	}

	out := make([]string, 0, len(dims))
	for _, d := range dims {
		out = append(out, strengthText(d, a, resume, jd))
	}
	return out
}

func strengthText(d Dimension, a *Assessment, resume, jd *types.ExtractedProfile) string {
	switch d {
	case DimensionSkills:
		if len(jd.Skills) == 0 {
			return "The job description does not list specific technical skills, so your skill set is not a blocker."
		}
		shown := a.MatchedSkills
		if len(shown) > maxSkillsInStrength {
			shown = shown[:maxSkillsInStrength]
		}
		return fmt.Sprintf("Strong skills match: your resume covers %d of %d required skills, including %s.",
			len(a.MatchedSkills), len(jd.Skills), strings.Join(shown, ", "))
	case DimensionExperience:
		if jd.YearsOfExperience == nil {
			return "No minimum experience is stated, so your background is not held back on tenure."
		}
		if a.Scores.Experience >= 100 {
			return fmt.Sprintf("Your %s years of experience meet the %s years the role asks for.",
				formatYears(resume.Years()), formatYears(*jd.YearsOfExperience))
		}
		return fmt.Sprintf("Your %s years of experience come close to the %s years the role asks for.",
			formatYears(resume.Years()), formatYears(*jd.YearsOfExperience))
	case DimensionEducation:
		if jd.Education == types.EducationNone {
			return "No specific degree is required for this role."
		}
		return fmt.Sprintf("Your %s satisfies the %s requirement.", resume.Education.Label(), jd.Education.Label())
	case DimensionKeywords:
		return "Your resume mirrors much of the job description's terminology."
	default:
		return fmt.Sprintf("The overall language of your resume closely matches the job description (%.0f%% similarity).", a.Scores.Semantic)
	}
}

// MergeJudgement 把LLM评审的优势和改进点追加在规则结果之后，每类最多追加 maxJudgementItems 条并去重。
// 有改进点时去掉兜底的润色建议
func (r *Recommender) MergeJudgement(f Feedback, strengths, improvements []string) Feedback {
	recs := f.Recommendations
	if len(recs) == 1 && recs[0] == polishRecommendation && hasText(improvements) {
		recs = nil
	}
	merged := Feedback{
		Strengths:       appendUnique(f.Strengths, strengths, maxJudgementItems),
		Recommendations: appendUnique(recs, improvements, maxJudgementItems),
	}
	if len(merged.Recommendations) == 0 {
		merged.Recommendations = []string{polishRecommendation}
	}
	return merged
}

func hasText(items []string) bool {
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

func appendUnique(base, extra []string, limit int) []string {
	out := make([]string, 0, len(base)+limit)
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, s := range base {
		seen[strings.ToLower(s)] = struct{}{}
		out = append(out, s)
	}
	added := 0
	for _, s := range extra {
		if added == limit {
			break
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
		added++
	}
	return out
}

type recommendation struct {
	text string
	gap  float64
}

func (r *Recommender) recommendations(a *Assessment, resume, jd *types.ExtractedProfile) []string {
	var recs []recommendation

	counts := make(map[string]int, len(jd.Skills))
	for _, s := range jd.Skills {
		counts[s.Name] = s.Count
	}
	skillGap := 100 - a.Scores.Skills
	for i, name := range a.MissingSkills {
		if i >= r.maxMissingSkills {
			break
		}
		recs = append(recs, recommendation{text: missingSkillText(name, counts[name]), gap: skillGap})
	}
	skillsCovered := len(recs) > 0

	for _, d := range dimensionOrder {
		score := dimensionScore(a.Scores, d)
		if score >= r.recommendationThreshold {
			continue
		}
		if d == DimensionSkills && skillsCovered {
			continue
		}
		if text := gapText(d, a, resume, jd); text != "" {
			recs = append(recs, recommendation{text: text, gap: 100 - score})
		}
	}

	seen := make(map[string]struct{}, len(recs))
	unique := recs[:0]
	for _, rec := range recs {
		if _, dup := seen[rec.text]; dup {
			continue
		}
		seen[rec.text] = struct{}{}
		unique = append(unique, rec)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].gap > unique[j].gap
	})
	if len(unique) > r.maxRecommendations {
		unique = unique[:r.maxRecommendations]
	}

	out := make([]string, 0, len(unique)+1)
	for _, rec := range unique {
		out = append(out, rec.text)
	}
	if len(out) == 0 {
		out = append(out, polishRecommendation)
	}
	return out
}

func missingSkillText(name string, count int) string {
	if count > 1 {
		return fmt.Sprintf("Add or highlight %s: the job description mentions it %d times, but it does not appear in your resume.", name, count)
	}
	return fmt.Sprintf("Add or highlight %s: the job description asks for it, but it does not appear in your resume.", name)
}

func gapText(d Dimension, a *Assessment, resume, jd *types.ExtractedProfile) string {
	switch d {
	case DimensionSkills:
		return "List your technical skills in a dedicated section using the same names the job description uses."
	case DimensionExperience:
		if jd.YearsOfExperience == nil {
			return ""
		}
		if resume.YearsOfExperience == nil {
			return fmt.Sprintf("The role asks for %s+ years of experience, but your resume never states how many years you have. Add a summary line with your total years and expand on the scope of past roles.",
				formatYears(*jd.YearsOfExperience))
		}
		return fmt.Sprintf("The role asks for %s+ years of experience and your resume shows %s. Lengthen your experience narrative with the scope, ownership and impact of each role.",
			formatYears(*jd.YearsOfExperience), formatYears(*resume.YearsOfExperience))
	case DimensionEducation:
		return fmt.Sprintf("Education gap: the role asks for a %s and your resume shows %s. State your highest degree explicitly, or highlight equivalent certifications, research or coursework.",
			jd.Education.Label(), resume.Education.Label())
	case DimensionKeywords:
		if len(a.MissingKeywords) == 0 {
			return ""
		}
		terms := a.MissingKeywords
		if len(terms) > maxKeywordsInAdvice {
			terms = terms[:maxKeywordsInAdvice]
		}
		return fmt.Sprintf("Mirror the job description's terminology: work terms such as %s into your experience bullets where they truthfully apply.",
			strings.Join(terms, ", "))
	default:
		return "Tailor your summary and recent role descriptions to the responsibilities in the job description so the overall language lines up more closely."
	}
}

func formatYears(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
