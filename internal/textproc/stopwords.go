package textproc

// defaultStopwords 英文停用词表。不包含 go、r、c 等与技能名冲突的词。
var defaultStopwords = []string{
	"a", "about", "above", "after", "again", "against", "all", "also", "am", "an", "and", "any", "are",
	"as", "at", "be", "because", "been", "before", "being", "below", "between", "both", "but", "by",
	"can", "could", "did", "do", "does", "doing", "down", "during", "each", "etc", "few", "for", "from",
	"further", "had", "has", "have", "having", "he", "her", "here", "hers", "herself", "him", "himself",
	"his", "how", "i", "if", "in", "into", "is", "it", "its", "itself", "just", "me", "more", "most",
	"must", "my", "myself", "no", "nor", "not", "now", "of", "off", "on", "once", "only", "or", "other",
	"our", "ours", "ourselves", "out", "over", "own", "per", "same", "shall", "she", "should", "so",
	"some", "such", "than", "that", "the", "their", "theirs", "them", "themselves", "then", "there",
	"these", "they", "this", "those", "through", "to", "too", "under", "until", "up", "upon", "us",
	"very", "via", "was", "we", "were", "what", "when", "where", "which", "while", "who", "whom", "why",
	"will", "with", "within", "would", "you", "your", "yours", "yourself", "yourselves",
	// 缩写与所有格拆分后的残片
	"s", "t", "d", "ll", "m", "re", "ve",
	// 简历和JD中的高频套话
	"e", "g", "eg", "ie", "plus", "including", "able", "strong", "good", "excellent",
	"looking", "seeking", "ideal", "candidate", "role", "position", "team", "work", "working",
	"required", "requirement", "requirements", "preferred", "responsibilities", "responsible",
	"years", "year", "yrs", "yr", "experience", "experienced",
}
