package skills

import (
	"testing"

	"resume-scorer/internal/textproc"
	"resume-scorer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T) (*Extractor, *textproc.Normalizer) {
	t.Helper()
	n := textproc.NewNormalizer()
	tax, err := DefaultTaxonomy(n)
	require.NoError(t, err)
	return NewExtractor(tax), n
}

func skillNames(p *types.ExtractedProfile) []string {
	names := make([]string, 0, len(p.Skills))
	for _, s := range p.Skills {
		names = append(names, s.Name)
	}
	return names
}

func TestExtractSkillsInOrderOfAppearance(t *testing.T) {
	e, n := newTestExtractor(t)
	text := "5 years experience with Python, Go, and Kubernetes, Bachelor's in Computer Science"

	profile := e.Extract(n.Tokenize(text), text)
	assert.Equal(t, []string{"Python", "Go", "Kubernetes"}, skillNames(profile))
}

func TestExtractSkillsCountsRepeatsOnce(t *testing.T) {
	e, n := newTestExtractor(t)
	text := "Python services, python tooling and more PYTHON; Google Cloud Platform and GCP."

	profile := e.Extract(n.Tokenize(text), text)
	require.Len(t, profile.Skills, 2)
	assert.Equal(t, "Python", profile.Skills[0].Name)
	assert.Equal(t, 3, profile.Skills[0].Count)
	assert.Equal(t, 0, profile.Skills[0].FirstIndex)

	// "google cloud platform" 与 "google cloud" 在同一位置只计一次
	assert.Equal(t, "Google Cloud", profile.Skills[1].Name)
	assert.Equal(t, 2, profile.Skills[1].Count)
}

func TestExtractOverlappingSkills(t *testing.T) {
	e, n := newTestExtractor(t)
	text := "Shipped apps in React Native"

	profile := e.Extract(n.Tokenize(text), text)
	assert.ElementsMatch(t, []string{"React", "React Native"}, skillNames(profile))
}

func TestExtractKeywordsExcludeSkills(t *testing.T) {
	e, n := newTestExtractor(t)
	text := "Backend engineer building payment platforms with Kubernetes; payment reliability"

	profile := e.Extract(n.Tokenize(text), text)

	var displays []string
	for _, k := range profile.Keywords {
		displays = append(displays, k.Display)
	}
	assert.Contains(t, displays, "backend")
	assert.Contains(t, displays, "payment")
	assert.NotContains(t, displays, "kubernetes")

	for _, k := range profile.Keywords {
		if k.Display == "payment" {
			assert.Equal(t, 2, k.Count)
		}
	}
}

func TestExtractYears(t *testing.T) {
	testCases := []struct {
		text string
		want *float64
	}{
		{"5 years experience with Python", ptr(5)},
		{"3+ years of Go", ptr(3)},
		{"over 8 yrs in fintech and 2 years in retail", ptr(8)},
		{"at least 4.5 years", ptr(4.5)},
		{"5-7 years building APIs", ptr(5)},
		{"graduated in 2015, no tenure claims", nil},
		{"a 95 year old company", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			got := ExtractYears(tc.text)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tc.want, *got, 1e-9)
		})
	}
}

func TestExtractEducation(t *testing.T) {
	testCases := []struct {
		text string
		want types.EducationLevel
	}{
		{"Bachelor's in Computer Science", types.EducationBachelor},
		{"B.S. Mathematics", types.EducationBachelor},
		{"M.Sc. in Physics and a B.Sc.", types.EducationMaster},
		{"MBA, 2019", types.EducationMaster},
		{"PhD in Mathematics", types.EducationDoctorate},
		{"Ph.D. candidate", types.EducationDoctorate},
		{"Certified Scrum Master", types.EducationNone},
		{"Self-taught developer", types.EducationNone},
		{"Master’s degree preferred", types.EducationMaster},
		{"A degree in Computer Science", types.EducationBachelor},
		{"Python developer, 3 years. No degree required.", types.EducationNone},
		{"Degree not required, skills matter", types.EducationNone},
		{"We hire without a college degree", types.EducationNone},
		{"Does not require a bachelor's degree", types.EducationNone},
		{"No degree needed, but a Master's in Statistics is a plus", types.EducationMaster},
		{"BS in Computer Science, MS in Statistics", types.EducationMaster},
		{"BA in Economics", types.EducationBachelor},
		{"B.S in Physics", types.EducationBachelor},
		{"MS degree in Data Science", types.EducationMaster},
		{"Proficient in MS Office and Excel", types.EducationNone},
		{"p99 latency under 5 ms in production", types.EducationNone},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractEducation(tc.text))
		})
	}
}

func TestExtractCaseSensitiveSkills(t *testing.T) {
	e, n := newTestExtractor(t)

	testCases := []struct {
		name string
		text string
		want []string
	}{
		{"lowercase verb", "Python engineer willing to go the extra mile, 3 years needed", []string{"Python"}},
		{"capitalized language", "Python and Go services on Kubernetes", []string{"Python", "Go", "Kubernetes"}},
		{"alias stays case-insensitive", "GOLANG microservices", []string{"Go", "Microservices"}},
		{"season", "Internship in spring 2023, Java backend", []string{"Java"}},
		{"framework", "Spring Boot and Spring services", []string{"Spring"}},
		{"adjective", "swift delivery of features in Kotlin", []string{"Kotlin"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			profile := e.Extract(n.Tokenize(tc.text), tc.text)
			assert.Equal(t, tc.want, skillNames(profile))
		})
	}
}

func ptr(v float64) *float64 {
	return &v
}
