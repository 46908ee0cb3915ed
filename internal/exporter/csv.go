package exporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"

	"qbank/internal/question"
)

type CSVEncoder struct{}

const utf8BOM = "\xef\xbb\xbf"

// tableRow is the shared csv/xlsx column layout. Options are one JSON array.
func tableRow(q question.Question) ([]string, error) {
	opts := q.Options
	if opts == nil {
		opts = []string{}
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return nil, err
	}
	return []string{
		strconv.FormatInt(q.ID, 10),
		q.Text,
		q.SubjectName,
		string(q.Difficulty),
		string(b),
		q.CorrectLetter(),
		formatCreated(q.CreatedAt),
	}, nil
}

func (CSVEncoder) Encode(items []question.Question, _ Options) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(tableHeader); err != nil {
		return nil, &EncodingError{Format: FormatCSV, Err: err}
	}
	for _, q := range items {
		row, err := tableRow(q)
		if err != nil {
			return nil, &EncodingError{Format: FormatCSV, Err: err}
		}
		if err := w.Write(row); err != nil {
			return nil, &EncodingError{Format: FormatCSV, Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, &EncodingError{Format: FormatCSV, Err: err}
	}
	return buf.Bytes(), nil
}

func (CSVEncoder) ContentType() string   { return "text/csv; charset=utf-8" }
func (CSVEncoder) FileExtension() string { return "csv" }
