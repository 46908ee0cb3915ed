package importer

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"qbank/internal/question"
)

type Field string

const (
	FieldText          Field = "text"
	FieldOptionA       Field = "option_a"
	FieldOptionB       Field = "option_b"
	FieldOptionC       Field = "option_c"
	FieldOptionD       Field = "option_d"
	FieldCorrectOption Field = "correct_option_index"
	FieldDifficulty    Field = "difficulty"
)

func (f Field) optionPosition() (int, bool) {
	switch f {
	case FieldOptionA:
		return 0, true
	case FieldOptionB:
		return 1, true
	case FieldOptionC:
		return 2, true
	case FieldOptionD:
		return 3, true
	default:
		return 0, false
	}
}

// Session holds the drafts of one import attempt. It is rebuilt from the
// client's draft list on every request and never stored.
type Session struct {
	drafts   []Draft
	excluded map[int]bool
}

// NewSession copies and validates drafts. Rows carrying the excluded flag
// start excluded.
func NewSession(drafts []Draft) *Session {
	s := &Session{
		drafts:   make([]Draft, len(drafts)),
		excluded: make(map[int]bool),
	}
	for i, d := range drafts {
		d.Options = append([]string(nil), d.Options...)
		s.drafts[i] = Validate(d)
		if d.Excluded {
			s.excluded[i] = true
		}
	}
	return s
}

func (s *Session) Len() int {
	return len(s.drafts)
}

// EditField updates one field of the draft at index and re-validates that
// draft only. Option fields address positions; editing the position just past
// the last option appends one, and a blank value clears the last option.
func (s *Session) EditField(index int, field Field, value string) error {
	if index < 0 || index >= len(s.drafts) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	d := s.drafts[index]
	value = norm.NFC.String(strings.TrimSpace(value))

	switch field {
	case FieldText:
		d.Text = value
	case FieldCorrectOption:
		d.CorrectOptionIndex = parseAnswer(value)
	case FieldDifficulty:
		diff, ok := question.ParseDifficulty(value)
		if !ok {
			return fmt.Errorf("%w: difficulty %q", ErrInvalidValue, value)
		}
		d.Difficulty = diff
	default:
		pos, ok := field.optionPosition()
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		opts, err := editOption(d.Options, pos, value)
		if err != nil {
			return err
		}
		d.Options = opts
	}

	s.drafts[index] = Validate(d)
	return nil
}

func editOption(opts []string, pos int, value string) ([]string, error) {
	switch {
	case pos < len(opts) && value != "":
		opts[pos] = value
	case pos == len(opts)-1 && value == "":
		opts = opts[:pos]
	case pos == len(opts) && value != "":
		opts = append(opts, value)
	case pos < len(opts):
		return nil, fmt.Errorf("%w: only the last option can be cleared", ErrInvalidValue)
	default:
		return nil, fmt.Errorf("%w: option %c does not follow the existing options", ErrInvalidValue, 'A'+pos)
	}
	return opts, nil
}

// ToggleExclude flips whether the row at index is committed.
func (s *Session) ToggleExclude(index int) error {
	if index < 0 || index >= len(s.drafts) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	if s.excluded[index] {
		delete(s.excluded, index)
	} else {
		s.excluded[index] = true
	}
	return nil
}

// CommitSet returns the included valid drafts in order. Callers must treat an
// empty result as ErrNothingToImport.
func (s *Session) CommitSet() []Draft {
	out := make([]Draft, 0, len(s.drafts))
	for i, d := range s.drafts {
		if s.excluded[i] || !d.IsValid {
			continue
		}
		d.Excluded = false
		out = append(out, d)
	}
	return out
}

// Drafts returns a snapshot of every row with its exclusion flag set.
func (s *Session) Drafts() []Draft {
	out := make([]Draft, len(s.drafts))
	for i, d := range s.drafts {
		d.Options = append([]string(nil), d.Options...)
		d.Excluded = s.excluded[i]
		out[i] = d
	}
	return out
}
