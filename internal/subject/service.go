package subject

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"qbank/internal/audit"
	"qbank/internal/db"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrSubjectNotFound = errors.New("subject not found")
	ErrSubjectExists   = errors.New("subject already exists")
	ErrSubjectInUse    = errors.New("subject still has questions")
	ErrSubjectConflict = errors.New("subject could not be resolved after retry")
)

// findOrCreateAttempts bounds how often a lost insert race is retried.
const findOrCreateAttempts = 2

type Service struct {
	db    *sql.DB
	audit audit.Sink
	now   func() time.Time
}

func NewService(conn *sql.DB, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.Discard{}
	}
	return &Service{db: conn, audit: sink, now: time.Now}
}

func (s *Service) List(ctx context.Context) ([]Subject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at
		FROM subjects
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	items := make([]Subject, 0)
	for rows.Next() {
		var it Subject
		if err := rows.Scan(&it.ID, &it.Name, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Subject, error) {
	return getByID(ctx, s.db, id)
}

func (s *Service) Create(ctx context.Context, actorID int64, name string) (*Subject, error) {
	name = NormalizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	var it Subject
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO subjects (name, created_at)
		VALUES ($1, $2)
		RETURNING id, name, created_at
	`, name, s.now().UTC()).Scan(&it.ID, &it.Name, &it.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrSubjectExists
		}
		return nil, fmt.Errorf("insert subject: %w", err)
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:     audit.Actor(actorID),
		Action:     audit.ActionCreateSubject,
		EntityType: "subject",
		EntityID:   audit.EntityID(it.ID),
		Details:    "Created subject " + it.Name,
	})
	return &it, nil
}

// Delete removes a subject that no question references.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid subject id", ErrInvalidInput)
	}

	var inUse int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM questions WHERE subject_id = $1`, id).Scan(&inUse); err != nil {
		return fmt.Errorf("count subject questions: %w", err)
	}
	if inUse > 0 {
		return ErrSubjectInUse
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrSubjectInUse
		}
		return fmt.Errorf("delete subject: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSubjectNotFound
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:     audit.Actor(actorID),
		Action:     audit.ActionDeleteSubject,
		EntityType: "subject",
		EntityID:   audit.EntityID(id),
		Details:    "Deleted subject",
	})
	return nil
}

// Resolve turns a Ref into a stored subject using q, which may be a
// transaction. Named refs are created when missing.
func (s *Service) Resolve(ctx context.Context, q db.Querier, ref Ref) (*Subject, error) {
	if name, ok := ref.Name(); ok {
		return s.FindOrCreate(ctx, q, name)
	}
	if id, ok := ref.ID(); ok {
		return getByID(ctx, q, id)
	}
	return nil, fmt.Errorf("%w: subject is required", ErrInvalidInput)
}

// FindOrCreate returns the subject with the given name, inserting it when it
// does not exist. A concurrent insert of the same name is absorbed by the
// unique constraint and the lookup is retried once.
func (s *Service) FindOrCreate(ctx context.Context, q db.Querier, name string) (*Subject, error) {
	name = NormalizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: subject name is required", ErrInvalidInput)
	}

	for attempt := 0; attempt < findOrCreateAttempts; attempt++ {
		it, err := getByName(ctx, q, name)
		if err == nil {
			return it, nil
		}
		if !errors.Is(err, ErrSubjectNotFound) {
			return nil, err
		}

		var created Subject
		err = q.QueryRowContext(ctx, `
			INSERT INTO subjects (name, created_at)
			VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING
			RETURNING id, name, created_at
		`, name, s.now().UTC()).Scan(&created.ID, &created.Name, &created.CreatedAt)
		switch {
		case err == nil:
			return &created, nil
		case errors.Is(err, sql.ErrNoRows), db.IsUniqueViolation(err):
			continue
		default:
			return nil, fmt.Errorf("insert subject: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrSubjectConflict, name)
}

func getByID(ctx context.Context, q db.Querier, id int64) (*Subject, error) {
	if id <= 0 {
		return nil, ErrSubjectNotFound
	}
	var it Subject
	err := q.QueryRowContext(ctx, `SELECT id, name, created_at FROM subjects WHERE id = $1`, id).
		Scan(&it.ID, &it.Name, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return &it, nil
}

func getByName(ctx context.Context, q db.Querier, name string) (*Subject, error) {
	var it Subject
	err := q.QueryRowContext(ctx, `SELECT id, name, created_at FROM subjects WHERE name = $1`, name).
		Scan(&it.ID, &it.Name, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("get subject by name: %w", err)
	}
	return &it, nil
}
