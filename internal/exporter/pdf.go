package exporter

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"qbank/internal/question"
)

// PDFEncoder renders a printable question sheet with the core Helvetica font.
// Text is translated to cp1252, the only encoding the core fonts cover; runes
// outside it (Cyrillic, CJK and so on) are printed as '.'. Use the docx or
// xlsx encoders for such content.
type PDFEncoder struct {
	// Compress deflates page streams. Tests turn it off to inspect text.
	Compress bool
}

const pdfTitle = "Question Bank Export"

func (e PDFEncoder) Encode(items []question.Question, opts Options) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(e.Compress)
	pdf.SetCreationDate(fixedTime)
	pdf.SetModificationDate(fixedTime)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(pdfTitle, true)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, pdfTitle, "", 1, "C", false, 0, "")
	pdf.Ln(6)

	for i, q := range items {
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s (%s)", i+1, q.Text, q.Difficulty)), "", "L", false)

		pdf.SetFont("Helvetica", "", 10)
		for j, opt := range q.Options {
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("   %s) %s", question.LetterFor(j+1), opt)), "", "L", false)
		}
		if opts.IncludeAnswers {
			pdf.SetTextColor(0, 128, 0)
			pdf.MultiCell(0, 5, "   Correct: "+q.CorrectLetter(), "", "L", false)
		}
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &EncodingError{Format: FormatPDF, Err: err}
	}
	return buf.Bytes(), nil
}

func (PDFEncoder) ContentType() string   { return "application/pdf" }
func (PDFEncoder) FileExtension() string { return "pdf" }
