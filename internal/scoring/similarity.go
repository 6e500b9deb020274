// Package scoring 计算语义相似度、五个子分数、加权总分，并生成优势与改进建议。
package scoring

import (
	"math"

	"resume-scorer/internal/textproc"
)

// SimilarityScorer 基于词频向量余弦相似度的确定性语义分数
type SimilarityScorer struct {
	useIDF bool
}

// SimilarityOption SimilarityScorer 的函数选项
type SimilarityOption func(*SimilarityScorer)

// WithIDF 是否在两个文档间使用平滑IDF加权
func WithIDF(enabled bool) SimilarityOption {
	return func(s *SimilarityScorer) {
		s.useIDF = enabled
	}
}

// NewSimilarityScorer 创建相似度计算器，默认启用IDF
func NewSimilarityScorer(opts ...SimilarityOption) *SimilarityScorer {
	s := &SimilarityScorer{useIDF: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score 返回[0,100]的相似度。词表按字典序遍历，保证浮点累加顺序固定
func (s *SimilarityScorer) Score(resume, jd *textproc.TokenModel) float64 {
	if resume == nil || jd == nil || resume.Len() == 0 || jd.Len() == 0 {
		return 0
	}

	var dot, normA, normB float64
	for _, term := range unionTerms(resume.Terms(), jd.Terms()) {
		a := float64(resume.Frequency(term))
		b := float64(jd.Frequency(term))

		weight := 1.0
		if s.useIDF {
			df := 0.0
			if a > 0 {
				df++
			}
			if b > 0 {
				df++
			}
			// 平滑IDF: ln((1+N)/(1+df)) + 1，N=2
			weight = math.Log(3/(1+df)) + 1
		}

		a *= weight
		b *= weight
		dot += a * b
		normA += a * a
		normB += b * b
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return Clamp(100 * dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// unionTerms 合并两个已排序的词表
func unionTerms(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
