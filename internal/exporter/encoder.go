package exporter

import (
	"fmt"
	"strings"
	"time"

	"qbank/internal/question"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

func ParseFormat(v string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(v)))
	if f == "" {
		return FormatJSON, nil
	}
	if _, err := ForFormat(f); err != nil {
		return "", err
	}
	return f, nil
}

type Options struct {
	// IncludeAnswers adds the correct letter to pdf and docx output. json,
	// csv and xlsx always carry it.
	IncludeAnswers bool
}

// Encoder renders a complete document in memory.
type Encoder interface {
	Encode(items []question.Question, opts Options) ([]byte, error)
	ContentType() string
	FileExtension() string
}

func ForFormat(f Format) (Encoder, error) {
	switch f {
	case FormatJSON:
		return JSONEncoder{}, nil
	case FormatCSV:
		return CSVEncoder{}, nil
	case FormatXLSX:
		return XLSXEncoder{}, nil
	case FormatPDF:
		return PDFEncoder{Compress: true}, nil
	case FormatDOCX:
		return DOCXEncoder{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// EncodingError wraps a failure inside an encoder.
type EncodingError struct {
	Format Format
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

func Filename(mode Mode, enc Encoder, day time.Time) string {
	return fmt.Sprintf("questions_%s_%s.%s", mode, day.Format(dateOnly), enc.FileExtension())
}

var tableHeader = []string{"id", "text", "subject", "difficulty", "options", "correct_option", "created_at"}

// fixedTime stamps archive entries and document metadata so that output
// depends on content only.
var fixedTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func formatCreated(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
