// Package textproc 将纯文本规范化为带词频的token模型。
package textproc

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxTokens 单个文档参与评分的默认token上限
const DefaultMaxTokens = 5000

// compoundTerms 需要整体保留的技术复合词（已小写），按长度降序匹配
var compoundTerms = []string{
	"objective-c", "asp.net", "node.js", "next.js", "nuxt.js", "vue.js", "react.js", "express.js",
	"nest.js", "three.js", "d3.js", "ember.js", "backbone.js", "ci/cd", "tcp/ip", "pl/sql", "t-sql",
	"c++", "c#", "f#", ".net", "vb.net", "a/b",
}

func init() {
	sort.SliceStable(compoundTerms, func(i, j int) bool {
		return len(compoundTerms[i]) > len(compoundTerms[j])
	})
}

// Token 规范化后的单个token
type Token struct {
	Surface  string // 小写后的原始写法，用于展示和技能匹配
	Original string // 保留大小写的原文写法
	Term     string // 匹配用的规范形式（启用词干化时为词干）
	Compound bool   // 是否为保留的技术复合词
}

// TokenModel 文档的token序列和词频，构建后不可修改
type TokenModel struct {
	tokens    []Token
	freq      map[string]int
	display   map[string]string
	truncated bool
}

// Len 返回token数量
func (m *TokenModel) Len() int {
	return len(m.tokens)
}

// At 返回第i个token
func (m *TokenModel) At(i int) Token {
	return m.tokens[i]
}

// Tokens 返回token序列的副本
func (m *TokenModel) Tokens() []Token {
	out := make([]Token, len(m.tokens))
	copy(out, m.tokens)
	return out
}

// Frequency 返回某个规范形式的出现次数
func (m *TokenModel) Frequency(term string) int {
	return m.freq[term]
}

// Terms 返回去重后的规范形式，按字典序排列
func (m *TokenModel) Terms() []string {
	terms := make([]string, 0, len(m.freq))
	for t := range m.freq {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// Display 返回规范形式首次出现时的写法
func (m *TokenModel) Display(term string) string {
	if d, ok := m.display[term]; ok {
		return d
	}
	return term
}

// Truncated 是否因超过token上限被截断
func (m *TokenModel) Truncated() bool {
	return m.truncated
}

// Normalizer 文本规范化与分词器，可被多个请求并发使用
type Normalizer struct {
	stemming  bool
	maxTokens int
	stopwords map[string]struct{}
}

// Option 配置 Normalizer 的函数选项
type Option func(*Normalizer)

// WithStemming 是否对字母token做词干化
func WithStemming(enabled bool) Option {
	return func(n *Normalizer) {
		n.stemming = enabled
	}
}

// WithMaxTokens 设置token上限，<=0 表示使用默认值
func WithMaxTokens(max int) Option {
	return func(n *Normalizer) {
		if max > 0 {
			n.maxTokens = max
		}
	}
}

// WithExtraStopwords 追加停用词
func WithExtraStopwords(words ...string) Option {
	return func(n *Normalizer) {
		for _, w := range words {
			n.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// NewNormalizer 创建分词器
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		stemming:  true,
		maxTokens: DefaultMaxTokens,
		stopwords: make(map[string]struct{}, len(defaultStopwords)),
	}
	for _, w := range defaultStopwords {
		n.stopwords[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Tokenize 将文本转换为 TokenModel，相同输入总是得到相同结果
func (n *Normalizer) Tokenize(text string) *TokenModel {
	model := &TokenModel{
		freq:    make(map[string]int),
		display: make(map[string]string),
	}

	n.scan(text, func(tok Token) bool {
		if len(model.tokens) >= n.maxTokens {
			model.truncated = true
			return false
		}
		model.tokens = append(model.tokens, tok)
		model.freq[tok.Term]++
		if _, ok := model.display[tok.Term]; !ok {
			model.display[tok.Term] = tok.Surface
		}
		return true
	})
	return model
}

// Phrase 按与 Tokenize 相同的规则处理一个短语（如技能别名），不受token上限限制
func (n *Normalizer) Phrase(phrase string) []Token {
	var out []Token
	n.scan(phrase, func(tok Token) bool {
		out = append(out, tok)
		return true
	})
	return out
}

// IsStopword 判断是否为停用词
func (n *Normalizer) IsStopword(word string) bool {
	_, ok := n.stopwords[word]
	return ok
}

func (n *Normalizer) scan(text string, emit func(Token) bool) {
	s := prepare(text)
	for i := 0; i < len(s); {
		if c := matchCompound(s, i); c != "" {
			if !emit(Token{Surface: c, Original: s[i : i+len(c)], Term: c, Compound: true}) {
				return
			}
			i += len(c)
			continue
		}

		r, size := utf8.DecodeRuneInString(s[i:])
		if !isWordRune(r) {
			i += size
			continue
		}

		j := i + size
		for j < len(s) {
			r2, sz := utf8.DecodeRuneInString(s[j:])
			if !isWordRune(r2) {
				break
			}
			j += sz
		}
		original := s[i:j]
		word := strings.ToLower(original)
		i = j

		if n.IsStopword(word) || isNumeric(word) {
			continue
		}
		if !emit(Token{Surface: word, Original: original, Term: n.term(word)}) {
			return
		}
	}
}

func (n *Normalizer) term(word string) string {
	if !n.stemming || !isASCIILetters(word) {
		return word
	}
	return english.Stem(word, false)
}

// prepare 做Unicode兼容规范化并统一引号，大小写留到切词后处理
func prepare(text string) string {
	s := norm.NFKC.String(text)
	return strings.NewReplacer("’", "'", "‘", "'").Replace(s)
}

func matchCompound(s string, i int) string {
	for _, c := range compoundTerms {
		if len(s)-i < len(c) || !strings.EqualFold(s[i:i+len(c)], c) {
			continue
		}
		first, _ := utf8.DecodeRuneInString(c)
		if isWordRune(first) && i > 0 {
			prev, _ := utf8.DecodeLastRuneInString(s[:i])
			if isWordRune(prev) {
				continue
			}
		}
		last, _ := utf8.DecodeLastRuneInString(c)
		if isWordRune(last) && i+len(c) < len(s) {
			next, _ := utf8.DecodeRuneInString(s[i+len(c):])
			if isWordRune(next) {
				continue
			}
		}
		return c
	}
	return ""
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isNumeric(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isASCIILetters(word string) bool {
	for i := 0; i < len(word); i++ {
		c := word[i]
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}
