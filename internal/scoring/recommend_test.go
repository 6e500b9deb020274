package scoring

import (
	"strings"
	"testing"

	"resume-scorer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func TestStrengthsTopDimensionsAboveThreshold(t *testing.T) {
	resume := &types.ExtractedProfile{
		Skills:            skillsOf("Python", "Kubernetes"),
		YearsOfExperience: years(6),
		Education:         types.EducationMaster,
	}
	jd := &types.ExtractedProfile{
		Skills:            skillsOf("Python", "Kubernetes"),
		YearsOfExperience: years(5),
		Education:         types.EducationBachelor,
	}
	a := NewComponentScorer().Assess(resume, jd, 80)

	fb := NewRecommender().Generate(a, resume, jd)
	require.Len(t, fb.Strengths, 3)
	// 三个100分维度按固定顺序
	assert.Contains(t, fb.Strengths[0], "2 of 2 required skills")
	assert.Contains(t, fb.Strengths[0], "Python, Kubernetes")
	assert.Contains(t, fb.Strengths[1], "6 years")
	assert.Contains(t, fb.Strengths[2], "master's degree")
}

func TestStrengthsEmptyBelowThreshold(t *testing.T) {
	a := &Assessment{Scores: types.ScoreBreakdown{Semantic: 40, Skills: 10, Experience: 50, Education: 20, Keywords: 65}}
	fb := NewRecommender().Generate(a, &types.ExtractedProfile{}, &types.ExtractedProfile{
		Skills:            skillsOf("Rust"),
		YearsOfExperience: years(10),
		Education:         types.EducationDoctorate,
	})
	assert.Empty(t, fb.Strengths)
}

func TestRecommendationsMissingSkillsFirstAndBounded(t *testing.T) {
	resume := &types.ExtractedProfile{Skills: skillsOf("Go")}
	jd := &types.ExtractedProfile{Skills: []types.SkillMention{
		{Name: "Go", Count: 1, FirstIndex: 0},
		{Name: "Rust", Count: 3, FirstIndex: 1},
		{Name: "Kafka", Count: 1, FirstIndex: 2},
		{Name: "Redis", Count: 1, FirstIndex: 3},
		{Name: "gRPC", Count: 1, FirstIndex: 4},
		{Name: "Terraform", Count: 1, FirstIndex: 5},
		{Name: "Docker", Count: 1, FirstIndex: 6},
	}}
	a := NewComponentScorer().Assess(resume, jd, 90)

	fb := NewRecommender().Generate(a, resume, jd)
	require.NotEmpty(t, fb.Recommendations)
	assert.LessOrEqual(t, len(fb.Recommendations), 8)
	assert.Contains(t, fb.Recommendations[0], "Rust")
	assert.Contains(t, fb.Recommendations[0], "3 times")

	skillRecs := 0
	for _, r := range fb.Recommendations {
		if strings.HasPrefix(r, "Add or highlight") {
			skillRecs++
		}
	}
	assert.Equal(t, 5, skillRecs)
	assert.False(t, containsSubstring(fb.Recommendations, "Docker"), "第六个缺失技能被截断")
	assert.False(t, containsSubstring(fb.Recommendations, "dedicated section"), "已有技能建议时不再给出通用技能建议")
}

func TestRecommendationsOrderedByGap(t *testing.T) {
	resume := &types.ExtractedProfile{YearsOfExperience: years(4)}
	jd := &types.ExtractedProfile{
		YearsOfExperience: years(10),
		Education:         types.EducationDoctorate,
		Keywords:          keywordsOf("ledger", "settlement"),
	}
	a := NewComponentScorer().Assess(resume, jd, 55)

	fb := NewRecommender().Generate(a, resume, jd)
	require.Len(t, fb.Recommendations, 4)
	// 关键词0分、学历20分、经验40分、语义55分
	assert.Contains(t, fb.Recommendations[0], "ledger, settlement")
	assert.Contains(t, fb.Recommendations[1], "Education gap")
	assert.Contains(t, fb.Recommendations[1], "doctorate")
	assert.Contains(t, fb.Recommendations[2], "10+ years")
	assert.Contains(t, fb.Recommendations[3], "Tailor your summary")
}

func TestRecommendationsPolishWhenAligned(t *testing.T) {
	p := &types.ExtractedProfile{Skills: skillsOf("Go")}
	a := NewComponentScorer().Assess(p, p, 95)

	fb := NewRecommender().Generate(a, p, p)
	assert.Equal(t, []string{polishRecommendation}, fb.Recommendations)
}

func TestRecommendationsCap(t *testing.T) {
	resume := &types.ExtractedProfile{}
	jd := &types.ExtractedProfile{
		Skills:            skillsOf("Rust", "Kafka", "Redis", "gRPC", "Terraform", "Docker"),
		YearsOfExperience: years(10),
		Education:         types.EducationDoctorate,
		Keywords:          keywordsOf("ledger"),
	}
	a := NewComponentScorer().Assess(resume, jd, 10)

	fb := NewRecommender(WithMaxRecommendations(6)).Generate(a, resume, jd)
	assert.Len(t, fb.Recommendations, 6)

	unique := make(map[string]struct{})
	for _, r := range fb.Recommendations {
		unique[r] = struct{}{}
	}
	assert.Len(t, unique, len(fb.Recommendations))
}

func TestMergeJudgement(t *testing.T) {
	r := NewRecommender()
	base := Feedback{
		Strengths:       []string{"Strong skills match: your resume covers 2 of 2 required skills, including Python, Kubernetes."},
		Recommendations: []string{"Add or highlight Terraform: the job description asks for it, but it does not appear in your resume."},
	}

	merged := r.MergeJudgement(base,
		[]string{"Led a platform migration", "  ", "led a platform migration", "Mentored engineers", "Owns on-call"},
		[]string{"Quantify the migration's impact"},
	)
	assert.Equal(t, []string{base.Strengths[0], "Led a platform migration", "Mentored engineers"}, merged.Strengths)
	assert.Equal(t, []string{base.Recommendations[0], "Quantify the migration's impact"}, merged.Recommendations)
	// 原列表不被修改
	assert.Len(t, base.Strengths, 1)
}

func TestMergeJudgementReplacesPolish(t *testing.T) {
	r := NewRecommender()
	polished := Feedback{Recommendations: []string{polishRecommendation}}

	merged := r.MergeJudgement(polished, nil, []string{"Mention your Kafka throughput numbers"})
	assert.Equal(t, []string{"Mention your Kafka throughput numbers"}, merged.Recommendations)

	kept := r.MergeJudgement(polished, nil, []string{" "})
	assert.Equal(t, []string{polishRecommendation}, kept.Recommendations)
	assert.Empty(t, kept.Strengths)
}
