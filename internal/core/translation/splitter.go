package translation

import (
	"regexp"
	"strings"
)

// DefaultMaxChunkSize はチャンクの最大文字数のデフォルト値
const DefaultMaxChunkSize = 24000

var (
	// 改行以外の空白の連続
	horizontalSpaceRe = regexp.MustCompile(`[^\S\n]+`)
	// 改行の前後の空白
	aroundNewlineRe = regexp.MustCompile(`[^\S\n]*\n[^\S\n]*`)
	// 空行の連続（正規化後は改行のみの連続）
	blankRunRe = regexp.MustCompile(`\n{3,}`)
	// 文末記号に空白が続く位置
	sentenceEndRe = regexp.MustCompile(`[.!?]+\s+`)
)

// Normalize はドキュメントテキストの空白を正規化する
// 空白の連続を1つに畳み、空行の連続を1つの空行に畳み、前後の空白を除去する
func Normalize(text string) string {
	text = horizontalSpaceRe.ReplaceAllString(text, " ")
	text = aroundNewlineRe.ReplaceAllString(text, "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Split は正規化したテキストを maxChunkSize 以下のチャンク列に分割する
// 分割は可能な限り段落境界・文境界で行う。チャンクは正規化後テキストの
// 連続した部分文字列であり、すべて連結すると Normalize(text) に一致する
//
// 副作用を持たない純粋関数。空の入力は空のチャンク列を返す
func Split(text string, maxChunkSize int) []string {
	text = Normalize(text)
	if text == "" {
		return nil
	}
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, paragraph := range paragraphSpans(text) {
		if len(paragraph) > maxChunkSize {
			// 段落単体が上限を超える場合は文単位で詰め直す
			flush()
			for _, sentence := range sentenceSpans(paragraph) {
				if current.Len() > 0 && current.Len()+len(sentence) > maxChunkSize {
					flush()
				}
				// 1文が上限を超える場合はそのまま1チャンクとして扱う
				current.WriteString(sentence)
			}
			flush()
			continue
		}

		if current.Len() > 0 && current.Len()+len(paragraph) > maxChunkSize {
			flush()
		}
		current.WriteString(paragraph)
	}
	flush()

	return chunks
}

// paragraphSpans はテキストを段落境界で区切る
// 各要素は後続の区切り（空行）を含むため、連結すると元のテキストに一致する
func paragraphSpans(text string) []string {
	var spans []string
	for {
		idx := strings.Index(text, "\n\n")
		if idx < 0 {
			spans = append(spans, text)
			return spans
		}
		spans = append(spans, text[:idx+2])
		text = text[idx+2:]
	}
}

// sentenceSpans は段落を文境界で区切る
// 文末記号が見つからない末尾の残りも1つの要素として返す
func sentenceSpans(paragraph string) []string {
	ends := sentenceEndRe.FindAllStringIndex(paragraph, -1)
	var spans []string
	prev := 0
	for _, end := range ends {
		spans = append(spans, paragraph[prev:end[1]])
		prev = end[1]
	}
	if prev < len(paragraph) {
		spans = append(spans, paragraph[prev:])
	}
	return spans
}
