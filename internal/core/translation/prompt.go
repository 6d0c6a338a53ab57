package translation

import (
	"fmt"
	"strings"
)

// buildPrompt は用語集とチャンク本文を1つの翻訳プロンプトにまとめる
// トークンを節約するため前置きは最小限にする
func buildPrompt(req ChunkRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate from %s to %s:", req.SourceLanguage, req.TargetLanguage)
	if req.Glossary != "" {
		b.WriteString("\nGlossary:")
		b.WriteString(req.Glossary)
	}
	b.WriteString("\nText:")
	b.WriteString(req.Text)
	return b.String()
}
