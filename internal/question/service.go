package question

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"qbank/internal/audit"
	"qbank/internal/db"
	"qbank/internal/subject"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrQuestionNotFound = errors.New("question not found")
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 200
	// insertChunk keeps a single INSERT under the drivers' bind-parameter limits.
	insertChunk = 500
)

type subjectResolver interface {
	Resolve(ctx context.Context, q db.Querier, ref subject.Ref) (*subject.Subject, error)
}

type Service struct {
	db       *sql.DB
	subjects subjectResolver
	audit    audit.Sink
	now      func() time.Time
}

type CreateInput struct {
	Text          string
	Options       []string
	CorrectOption int
	Difficulty    Difficulty
	Subject       subject.Ref
}

type BulkMoveResult struct {
	Moved   int64            `json:"moved"`
	Subject *subject.Subject `json:"subject"`
}

func NewService(conn *sql.DB, subjects subjectResolver, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.Discard{}
	}
	return &Service{db: conn, subjects: subjects, audit: sink, now: time.Now}
}

const selectColumns = `
	SELECT q.id, q.subject_id, s.name, q.text, q.options, q.correct_option, q.difficulty, q.created_at, q.updated_at
	FROM questions q
	JOIN subjects s ON s.id = q.subject_id
`

func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (*Question, error) {
	row, err := normalizeCreate(in)
	if err != nil {
		return nil, err
	}
	if in.Subject.IsZero() {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	subj, err := s.subjects.Resolve(ctx, tx, in.Subject)
	if err != nil {
		return nil, err
	}
	row.SubjectID = subj.ID

	ids, err := s.InsertBatch(ctx, tx, []NewQuestion{row})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:     audit.Actor(actorID),
		Action:     audit.ActionCreateQuestion,
		EntityType: "question",
		EntityID:   audit.EntityID(ids[0]),
		Details:    "Created question in subject " + subj.Name,
		Payload:    map[string]any{"subject_id": subj.ID},
	})
	return s.Get(ctx, ids[0])
}

// InsertBatch writes rows with multi-row INSERT statements on q and returns
// the new ids in input order.
func (s *Service) InsertBatch(ctx context.Context, q db.Querier, rows []NewQuestion) ([]int64, error) {
	ids := make([]int64, 0, len(rows))
	now := s.now().UTC()
	for start := 0; start < len(rows); start += insertChunk {
		end := start + insertChunk
		if end > len(rows) {
			end = len(rows)
		}
		chunkIDs, err := insertChunkRows(ctx, q, rows[start:end], now)
		if err != nil {
			return nil, err
		}
		ids = append(ids, chunkIDs...)
	}
	return ids, nil
}

func insertChunkRows(ctx context.Context, q db.Querier, rows []NewQuestion, now time.Time) ([]int64, error) {
	const cols = 7
	values := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*cols)
	for i, r := range rows {
		opts, err := json.Marshal(r.Options)
		if err != nil {
			return nil, fmt.Errorf("marshal options: %w", err)
		}
		values = append(values, "("+db.Placeholders(i*cols+1, cols)+")")
		args = append(args, r.SubjectID, r.Text, string(opts), r.CorrectOption, string(r.Difficulty.OrDefault()), now, now)
	}

	res, err := q.QueryContext(ctx, `
		INSERT INTO questions (subject_id, text, options, correct_option, difficulty, created_at, updated_at)
		VALUES `+strings.Join(values, ", ")+`
		RETURNING id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("insert questions: %w", err)
	}
	defer res.Close()

	ids := make([]int64, 0, len(rows))
	for res.Next() {
		var id int64
		if err := res.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("iterate question ids: %w", err)
	}
	if len(ids) != len(rows) {
		return nil, fmt.Errorf("insert questions: expected %d ids, got %d", len(rows), len(ids))
	}
	// RETURNING order is unspecified; ids from one statement ascend with row order.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Question, error) {
	if id <= 0 {
		return nil, ErrQuestionNotFound
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE q.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	items, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrQuestionNotFound
	}
	return &items[0], nil
}

// Find returns the questions matching c, newest first.
func (s *Service) Find(ctx context.Context, c Criteria) ([]Question, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if c.IDs != nil {
		if len(c.IDs) == 0 {
			return []Question{}, nil
		}
		marks := make([]string, len(c.IDs))
		for i, id := range c.IDs {
			marks[i] = arg(id)
		}
		where = append(where, "q.id IN ("+strings.Join(marks, ", ")+")")
	} else {
		if c.SubjectID > 0 {
			where = append(where, "q.subject_id = "+arg(c.SubjectID))
		}
		if c.Difficulty != "" {
			where = append(where, "q.difficulty = "+arg(string(c.Difficulty)))
		}
		if c.From != nil && c.To != nil {
			where = append(where, "q.created_at >= "+arg(c.From.UTC()))
			where = append(where, "q.created_at <= "+arg(c.To.UTC()))
		}
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY q.created_at DESC, q.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}
	return scanQuestions(rows)
}

func (s *Service) List(ctx context.Context, in ListQuery) (*Page, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if search := strings.TrimSpace(in.Search); search != "" {
		where = append(where, "LOWER(q.text) LIKE LOWER("+arg("%"+search+"%")+")")
	}
	if in.SubjectID > 0 {
		where = append(where, "q.subject_id = "+arg(in.SubjectID))
	}
	if in.Difficulty != "" {
		where = append(where, "q.difficulty = "+arg(string(in.Difficulty)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM questions q JOIN subjects s ON s.id = q.subject_id`+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}

	query := selectColumns + clause + " ORDER BY " + orderBy(in.Sort) +
		" LIMIT " + arg(limit) + " OFFSET " + arg((page-1)*limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	items, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}

	return &Page{
		Total:       total,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
		Questions:   items,
	}, nil
}

func orderBy(v Sort) string {
	switch v {
	case SortOldest:
		return "q.created_at ASC, q.id ASC"
	case SortDifficulty:
		return "CASE q.difficulty WHEN 'easy' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END ASC, q.created_at DESC, q.id DESC"
	case SortSubject:
		return "s.name ASC, q.created_at DESC, q.id DESC"
	default:
		return "q.created_at DESC, q.id DESC"
	}
}

func ParseSort(v string) (Sort, bool) {
	switch Sort(strings.ToLower(strings.TrimSpace(v))) {
	case "", SortNewest:
		return SortNewest, true
	case SortOldest:
		return SortOldest, true
	case SortDifficulty:
		return SortDifficulty, true
	case SortSubject:
		return SortSubject, true
	default:
		return "", false
	}
}

func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuestionNotFound
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:     audit.Actor(actorID),
		Action:     audit.ActionDeleteQuestion,
		EntityType: "question",
		EntityID:   audit.EntityID(id),
		Details:    "Deleted question: " + truncate(item.Text, 50),
		Payload:    map[string]any{"subject_id": item.SubjectID},
	})
	return nil
}

// Move reassigns one question. The audit entry is written only when the
// subject actually changes.
func (s *Service) Move(ctx context.Context, actorID, id int64, ref subject.Ref) (*Question, error) {
	if id <= 0 {
		return nil, ErrQuestionNotFound
	}
	if ref.IsZero() {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var oldSubjectID int64
	err = tx.QueryRowContext(ctx, `SELECT subject_id FROM questions WHERE id = $1`, id).Scan(&oldSubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("get question subject: %w", err)
	}

	subj, err := s.subjects.Resolve(ctx, tx, ref)
	if err != nil {
		return nil, err
	}

	if subj.ID != oldSubjectID {
		if _, err := tx.ExecContext(ctx, `
			UPDATE questions SET subject_id = $1, updated_at = $2 WHERE id = $3
		`, subj.ID, s.now().UTC(), id); err != nil {
			return nil, fmt.Errorf("move question: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if subj.ID != oldSubjectID {
		s.audit.Record(ctx, audit.Entry{
			UserID:     audit.Actor(actorID),
			Action:     audit.ActionMoveQuestion,
			EntityType: "question",
			EntityID:   audit.EntityID(id),
			Details:    fmt.Sprintf("Moved question from subject %d to %s", oldSubjectID, subj.Name),
			Payload:    map[string]any{"from_subject_id": oldSubjectID, "to_subject_id": subj.ID},
		})
	}
	return s.Get(ctx, id)
}

func (s *Service) BulkMove(ctx context.Context, actorID int64, ids []int64, ref subject.Ref) (*BulkMoveResult, error) {
	ids = uniquePositive(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: ids are required", ErrInvalidInput)
	}
	if ref.IsZero() {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	subj, err := s.subjects.Resolve(ctx, tx, ref)
	if err != nil {
		return nil, err
	}

	args := []any{subj.ID, s.now().UTC()}
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE questions SET subject_id = $1, updated_at = $2
		WHERE id IN (`+db.Placeholders(3, len(ids))+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("bulk move questions: %w", err)
	}
	moved, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:     audit.Actor(actorID),
		Action:     audit.ActionBulkMove,
		EntityType: "subject",
		EntityID:   audit.EntityID(subj.ID),
		Details:    fmt.Sprintf("Moved %d questions to %s", moved, subj.Name),
		Payload:    map[string]any{"question_ids": ids, "moved": moved},
	})
	return &BulkMoveResult{Moved: moved, Subject: subj}, nil
}

func normalizeCreate(in CreateInput) (NewQuestion, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return NewQuestion{}, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	opts := make([]string, 0, len(in.Options))
	for _, o := range in.Options {
		o = strings.TrimSpace(o)
		if o == "" {
			return NewQuestion{}, fmt.Errorf("%w: options must not be blank", ErrInvalidInput)
		}
		opts = append(opts, o)
	}
	if len(opts) < MinOptions || len(opts) > MaxOptions {
		return NewQuestion{}, fmt.Errorf("%w: between %d and %d options are required", ErrInvalidInput, MinOptions, MaxOptions)
	}
	if in.CorrectOption < 1 || in.CorrectOption > len(opts) {
		return NewQuestion{}, fmt.Errorf("%w: correct_option must be between 1 and %d", ErrInvalidInput, len(opts))
	}
	d, ok := ParseDifficulty(string(in.Difficulty))
	if !ok {
		return NewQuestion{}, fmt.Errorf("%w: difficulty must be easy, medium or hard", ErrInvalidInput)
	}
	return NewQuestion{
		Text:          text,
		Options:       opts,
		CorrectOption: in.CorrectOption,
		Difficulty:    d.OrDefault(),
	}, nil
}

func scanQuestions(rows *sql.Rows) ([]Question, error) {
	defer rows.Close()

	items := make([]Question, 0)
	for rows.Next() {
		var it Question
		var options, difficulty string
		if err := rows.Scan(&it.ID, &it.SubjectID, &it.SubjectName, &it.Text, &options, &it.CorrectOption, &difficulty, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(options), &it.Options); err != nil {
			return nil, fmt.Errorf("decode options for question %d: %w", it.ID, err)
		}
		it.Difficulty = Difficulty(difficulty)
		it.CreatedAt = it.CreatedAt.UTC()
		it.UpdatedAt = it.UpdatedAt.UTC()
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return items, nil
}

func uniquePositive(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func truncate(v string, n int) string {
	r := []rune(v)
	if len(r) <= n {
		return v
	}
	return string(r[:n]) + "..."
}
