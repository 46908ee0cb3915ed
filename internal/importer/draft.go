package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"qbank/internal/question"
	"qbank/internal/subject"
)

var (
	ErrIndexOutOfRange   = errors.New("draft index out of range")
	ErrUnknownField      = errors.New("unknown draft field")
	ErrInvalidValue      = errors.New("invalid field value")
	ErrNothingToImport   = errors.New("nothing to import")
	ErrInvalidDraft      = errors.New("draft is not valid")
	ErrSubjectResolution = errors.New("subject could not be resolved")
)

// Validation error tags.
const (
	ErrTagTooFewOptions = "too few options"
	ErrTagMissingAnswer = "missing answer"
)

// AnswerIndex is a 1-based correct option index that may be unset.
type AnswerIndex struct {
	n   int
	set bool
}

func Answer(n int) AnswerIndex {
	return AnswerIndex{n: n, set: true}
}

func (a AnswerIndex) Get() (int, bool) {
	return a.n, a.set
}

func (a AnswerIndex) MarshalJSON() ([]byte, error) {
	if !a.set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(a.n)), nil
}

// UnmarshalJSON accepts a number, a numeric string or an option letter.
// Anything else leaves the index unset.
func (a *AnswerIndex) UnmarshalJSON(b []byte) error {
	*a = AnswerIndex{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = parseAnswer(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return nil
	}
	if f == float64(int(f)) {
		*a = Answer(int(f))
	}
	return nil
}

func parseAnswer(v string) AnswerIndex {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return Answer(n)
	}
	if n, ok := question.IndexForLetter(v); ok {
		return Answer(n)
	}
	return AnswerIndex{}
}

// Draft is a parsed question that has not been stored yet.
type Draft struct {
	Text               string
	Options            []string
	CorrectOptionIndex AnswerIndex
	Difficulty         question.Difficulty
	Subject            subject.Ref
	Errors             []string
	IsValid            bool
	Excluded           bool
}

type draftWire struct {
	Text               string              `json:"text"`
	Options            []string            `json:"options"`
	CorrectOptionIndex AnswerIndex         `json:"correct_option_index"`
	Difficulty         question.Difficulty `json:"difficulty,omitempty"`
	SubjectID          int64               `json:"subject_id,omitempty"`
	CustomSubjectName  string              `json:"custom_subject_name,omitempty"`
	Errors             []string            `json:"errors"`
	IsValid            bool                `json:"is_valid"`
	Excluded           bool                `json:"excluded"`
}

func (d Draft) MarshalJSON() ([]byte, error) {
	w := draftWire{
		Text:               d.Text,
		Options:            d.Options,
		CorrectOptionIndex: d.CorrectOptionIndex,
		Difficulty:         d.Difficulty,
		Errors:             d.Errors,
		IsValid:            d.IsValid,
		Excluded:           d.Excluded,
	}
	if w.Options == nil {
		w.Options = []string{}
	}
	if w.Errors == nil {
		w.Errors = []string{}
	}
	if name, ok := d.Subject.Name(); ok {
		w.CustomSubjectName = name
	} else if id, ok := d.Subject.ID(); ok {
		w.SubjectID = id
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads a draft sent back by a client. Errors and is_valid are
// ignored; they are recomputed by Validate.
func (d *Draft) UnmarshalJSON(b []byte) error {
	var w draftWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	diff, ok := question.ParseDifficulty(string(w.Difficulty))
	if !ok {
		return fmt.Errorf("%w: difficulty %q", ErrInvalidValue, w.Difficulty)
	}
	*d = Draft{
		Text:               w.Text,
		Options:            w.Options,
		CorrectOptionIndex: w.CorrectOptionIndex,
		Difficulty:         diff,
		Subject:            subject.FromRequest(w.SubjectID, w.CustomSubjectName),
		Excluded:           w.Excluded,
	}
	return nil
}

// SubjectResolutionError reports the first draft whose subject could not be
// resolved. It matches ErrSubjectResolution with errors.Is.
type SubjectResolutionError struct {
	Index  int
	Reason string
}

func (e *SubjectResolutionError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Index+1, e.Reason)
}

func (e *SubjectResolutionError) Unwrap() error {
	return ErrSubjectResolution
}
