package translation

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"
)

var blankLineSplitRe = regexp.MustCompile(`\n\s*\n`)

// CompactGlossary は用語集テキストをプロンプト向けに圧縮する
// 空白の連続を畳み、空行区切りを ";" に置き換える
func CompactGlossary(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parts := blankLineSplitRe.Split(raw, -1)
	for i, part := range parts {
		parts[i] = strings.Join(strings.Fields(part), " ")
	}
	return strings.Join(parts, ";")
}

// ParseGlossaryCSV は「原語,訳語」形式のCSVをプロンプト向けの
// 用語集テキストに変換する
func ParseGlossaryCSV(data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to parse glossary csv: %w", err)
	}

	var pairs []string
	for _, record := range records {
		if len(record) < 2 {
			continue
		}
		term := strings.TrimSpace(record[0])
		target := strings.TrimSpace(record[1])
		if term == "" || target == "" {
			continue
		}
		pairs = append(pairs, term+": "+target)
	}
	return strings.Join(pairs, "; "), nil
}
