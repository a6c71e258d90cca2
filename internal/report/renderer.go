// Package report draws the single-page PDF summary of an ultrasound or quiz
// result.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
)

const (
	SourceUltrasound = "ultrasound"
	SourceQuiz       = "quiz"

	Title    = "Appendicitis Prediction Report"
	notFound = "N/A"

	marginX     = 100
	lineSpacing = 20
)

// Renderer lays out reports on one A4 page. Positions are given in points
// from the bottom-left corner of the page.
type Renderer struct {
	compress bool
}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// WithCompression toggles stream compression. Uncompressed output keeps the
// drawn text searchable in the raw bytes.
func (r *Renderer) WithCompression(on bool) *Renderer {
	r.compress = on
	return r
}

// Render draws the report for source and returns the PDF bytes. Quiz reports
// write one line per payload pair with no pagination, so long quizzes run
// past the bottom edge of the page. Both need the payload to be an object;
// other sources ignore it.
func (r *Renderer) Render(source string, payload *Payload) ([]byte, error) {
	if (source == SourceUltrasound || source == SourceQuiz) && !payload.IsObject() {
		return nil, ErrNotObject
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(Title, true)
	pdf.AddPage()

	_, pageHeight := pdf.GetPageSize()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	draw := func(x, y float64, text string) {
		pdf.Text(x, pageHeight-y, tr(text))
	}

	pdf.SetFont("Helvetica", "B", 16)
	draw(200, 800, Title)

	pdf.SetFont("Helvetica", "", 12)
	draw(marginX, 750, "Report Type: "+capitalize(source))

	switch source {
	case SourceUltrasound:
		draw(marginX, 700, "Report based on Ultrasound Analysis")
		draw(marginX, 680, "Model 1 Predictions: "+lookupOr(payload, "model1_predictions"))
		draw(marginX, 660, "Model 2 Predictions: "+lookupOr(payload, "model2_predictions"))
	case SourceQuiz:
		draw(marginX, 700, "Report based on Quick Quiz Assessment")
		for i, p := range payload.Pairs() {
			y := 700 - float64(i+1)*lineSpacing
			draw(marginX, y, fmt.Sprintf("%s: %s", p.Key, FormatValue(p.Value)))
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func lookupOr(p *Payload, key string) string {
	if v, ok := p.Lookup(key); ok {
		return v
	}
	return notFound
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(first)) + strings.ToLower(s[size:])
}
