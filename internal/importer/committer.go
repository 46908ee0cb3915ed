package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"qbank/internal/audit"
	"qbank/internal/db"
	"qbank/internal/question"
	"qbank/internal/subject"
)

type subjectResolver interface {
	Resolve(ctx context.Context, q db.Querier, ref subject.Ref) (*subject.Subject, error)
}

type batchInserter interface {
	InsertBatch(ctx context.Context, q db.Querier, rows []question.NewQuestion) ([]int64, error)
}

// Committer stores accepted drafts as canonical questions.
type Committer struct {
	db        *sql.DB
	subjects  subjectResolver
	questions batchInserter
	audit     audit.Sink
	batchID   func() string
}

type CommitResult struct {
	ImportedCount int     `json:"imported_count"`
	QuestionIDs   []int64 `json:"question_ids"`
	SubjectIDs    []int64 `json:"subject_ids"`
	BatchID       string  `json:"batch_id"`
}

func NewCommitter(conn *sql.DB, subjects subjectResolver, questions batchInserter, sink audit.Sink) *Committer {
	if sink == nil {
		sink = audit.Discard{}
	}
	return &Committer{
		db:        conn,
		subjects:  subjects,
		questions: questions,
		audit:     sink,
		batchID:   func() string { return uuid.NewString() },
	}
}

// Commit writes drafts in one transaction. Every draft must be valid and
// carry a subject; otherwise nothing is written.
func (c *Committer) Commit(ctx context.Context, actorID int64, drafts []Draft) (*CommitResult, error) {
	if len(drafts) == 0 {
		return nil, ErrNothingToImport
	}
	for i, d := range drafts {
		if d.Subject.IsZero() {
			return nil, &SubjectResolutionError{Index: i, Reason: "no subject_id or custom_subject_name"}
		}
		if err := checkCommittable(d); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	resolved := make(map[subject.Ref]*subject.Subject)
	subjectIDs := make([]int64, 0, 1)
	rows := make([]question.NewQuestion, 0, len(drafts))
	for i, d := range drafts {
		subj, ok := resolved[d.Subject]
		if !ok {
			subj, err = c.subjects.Resolve(ctx, tx, d.Subject)
			if err != nil {
				return nil, resolutionError(i, d.Subject, err)
			}
			resolved[d.Subject] = subj
			if !containsID(subjectIDs, subj.ID) {
				subjectIDs = append(subjectIDs, subj.ID)
			}
		}
		n, _ := d.CorrectOptionIndex.Get()
		rows = append(rows, question.NewQuestion{
			SubjectID:     subj.ID,
			Text:          strings.TrimSpace(d.Text),
			Options:       d.Options,
			CorrectOption: n,
			Difficulty:    d.Difficulty.OrDefault(),
		})
	}

	ids, err := c.questions.InsertBatch(ctx, tx, rows)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	res := &CommitResult{
		ImportedCount: len(ids),
		QuestionIDs:   ids,
		SubjectIDs:    subjectIDs,
		BatchID:       c.batchID(),
	}
	c.audit.Record(ctx, audit.Entry{
		UserID:     audit.Actor(actorID),
		Action:     audit.ActionImportQuestions,
		EntityType: "subject",
		EntityID:   audit.EntityID(subjectIDs[0]),
		Details:    importDetails(len(ids), resolved, subjectIDs),
		Payload: map[string]any{
			"count":       len(ids),
			"subject_ids": subjectIDs,
			"batch_id":    res.BatchID,
		},
	})
	return res, nil
}

func checkCommittable(d Draft) error {
	if !Validate(d).IsValid {
		return ErrInvalidDraft
	}
	if strings.TrimSpace(d.Text) == "" {
		return fmt.Errorf("%w: text is empty", ErrInvalidDraft)
	}
	if len(d.Options) > question.MaxOptions {
		return fmt.Errorf("%w: more than %d options", ErrInvalidDraft, question.MaxOptions)
	}
	return nil
}

func resolutionError(index int, ref subject.Ref, err error) error {
	switch {
	case errors.Is(err, subject.ErrSubjectNotFound):
		return &SubjectResolutionError{Index: index, Reason: fmt.Sprintf("subject %s does not exist", ref)}
	case errors.Is(err, subject.ErrSubjectConflict), errors.Is(err, subject.ErrInvalidInput):
		return &SubjectResolutionError{Index: index, Reason: err.Error()}
	default:
		return fmt.Errorf("resolve subject for row %d: %w", index+1, err)
	}
}

func importDetails(count int, resolved map[subject.Ref]*subject.Subject, subjectIDs []int64) string {
	if len(subjectIDs) == 1 {
		for _, s := range resolved {
			return fmt.Sprintf("Imported %d questions into %s", count, s.Name)
		}
	}
	return fmt.Sprintf("Imported %d questions into %d subjects", count, len(subjectIDs))
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
