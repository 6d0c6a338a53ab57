package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jinford/honyaku/internal/core/translation"
	"github.com/ledongthuc/pdf"
)

// DefaultPDFTimeout はPDF解析のタイムアウト
const DefaultPDFTimeout = 30 * time.Second

// Extractor はアップロードされたドキュメントからテキストを抽出する
// プレーンテキストとPDFをサポートする
type Extractor struct {
	pdfTimeout time.Duration
}

// NewExtractor は新しい Extractor を作成する
func NewExtractor() *Extractor {
	return &Extractor{pdfTimeout: DefaultPDFTimeout}
}

// ExtractText はバイト列からプレーンテキストを抽出する
func (e *Extractor) ExtractText(ctx context.Context, data []byte, mimeHint string) (string, error) {
	if isPDF(data, mimeHint) {
		return e.extractPDF(ctx, data)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("document is not valid UTF-8 text")
	}
	return string(data), nil
}

// extractPDF はPDFからテキストを抽出する
// 壊れたPDFで解析が止まらないようタイムアウト付きで実行する
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.pdfTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		text, err := readPDFText(data)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("timed out extracting text from PDF: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("failed to parse PDF: %w", r.err)
		}
		return r.text, nil
	}
}

func readPDFText(data []byte) (text string, err error) {
	// pdfライブラリは壊れた入力で panic することがある
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panicked: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func isPDF(data []byte, mimeHint string) bool {
	if strings.EqualFold(mimeHint, "application/pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

var _ translation.Extractor = (*Extractor)(nil)
