package exporter

import (
	"encoding/json"

	"qbank/internal/question"
)

type JSONEncoder struct{}

type jsonRow struct {
	ID            int64    `json:"id"`
	Text          string   `json:"text"`
	Subject       string   `json:"subject"`
	Difficulty    string   `json:"difficulty"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correct_option"`
	CreatedAt     string   `json:"created_at"`
}

func (JSONEncoder) Encode(items []question.Question, _ Options) ([]byte, error) {
	rows := make([]jsonRow, 0, len(items))
	for _, q := range items {
		opts := q.Options
		if opts == nil {
			opts = []string{}
		}
		rows = append(rows, jsonRow{
			ID:            q.ID,
			Text:          q.Text,
			Subject:       q.SubjectName,
			Difficulty:    string(q.Difficulty),
			Options:       opts,
			CorrectOption: q.CorrectLetter(),
			CreatedAt:     formatCreated(q.CreatedAt),
		})
	}
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, &EncodingError{Format: FormatJSON, Err: err}
	}
	return b, nil
}

func (JSONEncoder) ContentType() string   { return "application/json" }
func (JSONEncoder) FileExtension() string { return "json" }
