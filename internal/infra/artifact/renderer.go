package artifact

import (
	"bytes"
	"fmt"

	"github.com/jinford/honyaku/internal/core/translation"
	"github.com/jung-kurt/gofpdf"
)

// Renderer は翻訳済みテキストを成果物のバイト列へ変換する
// 原文がPDFのジョブはPDFとして、それ以外はプレーンテキストとして出力する
type Renderer struct{}

// NewRenderer は新しい Renderer を作成する
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render は format ("pdf" または "text") に応じた成果物を生成する
func (r *Renderer) Render(text string, format string) ([]byte, error) {
	if format == "pdf" {
		return renderPDF(text)
	}
	return []byte(text), nil
}

// renderPDF はテキストをA4のPDFへ流し込む。改ページは自動
func renderPDF(text string) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(15, 15, 15)
	doc.AddPage()
	doc.SetFont("Arial", "", 12)

	// コアフォントは cp1252 のみ対応のため変換をかける
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.MultiCell(0, 6, tr(text), "", "L", false)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

var _ translation.Renderer = (*Renderer)(nil)
