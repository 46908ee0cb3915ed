package exporter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"qbank/internal/question"
)

var (
	ErrInvalidRequest = errors.New("invalid export request")
	ErrUnknownFormat  = errors.New("unknown export format")
	ErrUnknownMode    = errors.New("unknown export mode")
)

type Mode string

const (
	ModeCurrent  Mode = "current"
	ModeSelected Mode = "selected"
	ModeMarked   Mode = "marked"
)

func ParseMode(v string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(v))) {
	case "", ModeCurrent:
		return ModeCurrent, nil
	case ModeSelected:
		return ModeSelected, nil
	case ModeMarked:
		return ModeMarked, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, v)
	}
}

func (m Mode) explicit() bool {
	return m == ModeSelected || m == ModeMarked
}

// Request describes what to export and how.
type Request struct {
	Mode           Mode
	IDs            []int64
	SubjectID      int64
	Difficulty     question.Difficulty
	StartDate      *time.Time
	EndDate        *time.Time
	Format         Format
	IncludeAnswers bool
}

const dateOnly = "2006-01-02"

// ParseRequest reads an export request from query parameters. A date-only
// end_date is widened to the end of that day. include_answers is honoured
// only for the literal "true".
func ParseRequest(q url.Values) (Request, error) {
	mode, err := ParseMode(q.Get("mode"))
	if err != nil {
		return Request{}, err
	}
	format, err := ParseFormat(q.Get("format"))
	if err != nil {
		return Request{}, err
	}
	req := Request{
		Mode:           mode,
		Format:         format,
		IncludeAnswers: q.Get("include_answers") == "true",
	}

	for _, raw := range q["ids"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return Request{}, fmt.Errorf("%w: invalid id %q", ErrInvalidRequest, part)
			}
			req.IDs = append(req.IDs, id)
		}
	}

	// Explicit modes select by id only; their filter fields are not read.
	if mode != ModeCurrent {
		return req, nil
	}

	if raw := strings.TrimSpace(q.Get("subject_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return Request{}, fmt.Errorf("%w: invalid subject_id", ErrInvalidRequest)
		}
		req.SubjectID = id
	}
	d, ok := question.ParseDifficulty(q.Get("difficulty"))
	if !ok {
		return Request{}, fmt.Errorf("%w: invalid difficulty", ErrInvalidRequest)
	}
	req.Difficulty = d

	if req.StartDate, err = parseBound(q.Get("start_date"), false); err != nil {
		return Request{}, err
	}
	if req.EndDate, err = parseBound(q.Get("end_date"), true); err != nil {
		return Request{}, err
	}
	return req, nil
}

func parseBound(raw string, end bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrInvalidRequest, raw)
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// CriteriaFor resolves a request into store criteria. Explicit modes use the
// id list alone. In current mode the date range applies only when both bounds
// are present.
func CriteriaFor(req Request) question.Criteria {
	if req.Mode.explicit() {
		ids := append([]int64{}, req.IDs...)
		return question.Criteria{IDs: ids}
	}
	c := question.Criteria{
		SubjectID:  req.SubjectID,
		Difficulty: req.Difficulty,
	}
	if req.StartDate != nil && req.EndDate != nil {
		from, to := *req.StartDate, *req.EndDate
		c.From, c.To = &from, &to
	}
	return c
}

type finder interface {
	Find(ctx context.Context, c question.Criteria) ([]question.Question, error)
}

type Selector struct {
	questions finder
}

func NewSelector(questions finder) *Selector {
	return &Selector{questions: questions}
}

// Select returns the questions a request names, newest first.
func (s *Selector) Select(ctx context.Context, req Request) ([]question.Question, error) {
	if req.Mode.explicit() && len(req.IDs) == 0 {
		return nil, fmt.Errorf("%w: ids are required for mode %s", ErrInvalidRequest, req.Mode)
	}
	return s.questions.Find(ctx, CriteriaFor(req))
}
