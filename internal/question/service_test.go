package question

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qbank/internal/audit"
	"qbank/internal/db/dbtest"
	"qbank/internal/subject"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *recordingSink) Record(_ context.Context, e audit.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}

type fixture struct {
	svc      *Service
	subjects *subject.Service
	sink     *recordingSink
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	sink := &recordingSink{}
	subjects := subject.NewService(conn, nil)
	f := &fixture{
		svc:      NewService(conn, subjects, sink),
		subjects: subjects,
		sink:     sink,
		clock:    time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc.now = func() time.Time {
		f.clock = f.clock.Add(time.Hour)
		return f.clock
	}
	return f
}

func (f *fixture) create(t *testing.T, text string, d Difficulty, ref subject.Ref) *Question {
	t.Helper()
	q, err := f.svc.Create(context.Background(), 1, CreateInput{
		Text:          text,
		Options:       []string{"one", "two", "three"},
		CorrectOption: 2,
		Difficulty:    d,
		Subject:       ref,
	})
	require.NoError(t, err)
	return q
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"blank text", CreateInput{Text: " ", Options: []string{"a", "b"}, CorrectOption: 1, Subject: subject.NewByName("Math")}},
		{"one option", CreateInput{Text: "q", Options: []string{"a"}, CorrectOption: 1, Subject: subject.NewByName("Math")}},
		{"five options", CreateInput{Text: "q", Options: []string{"a", "b", "c", "d", "e"}, CorrectOption: 1, Subject: subject.NewByName("Math")}},
		{"answer out of range", CreateInput{Text: "q", Options: []string{"a", "b"}, CorrectOption: 3, Subject: subject.NewByName("Math")}},
		{"bad difficulty", CreateInput{Text: "q", Options: []string{"a", "b"}, CorrectOption: 1, Difficulty: "extreme", Subject: subject.NewByName("Math")}},
		{"no subject", CreateInput{Text: "q", Options: []string{"a", "b"}, CorrectOption: 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, 1, tc.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestCreateWithCustomSubject(t *testing.T) {
	f := newFixture(t)

	q := f.create(t, "What is 2+2?", "", subject.NewByName("Arithmetic"))
	assert.Equal(t, "Arithmetic", q.SubjectName)
	assert.Equal(t, DifficultyMedium, q.Difficulty)
	assert.Equal(t, []string{"one", "two", "three"}, q.Options)
	assert.Equal(t, "B", q.CorrectLetter())

	again := f.create(t, "What is 3+3?", DifficultyEasy, subject.NewByName("Arithmetic"))
	assert.Equal(t, q.SubjectID, again.SubjectID)
	assert.Equal(t, []string{audit.ActionCreateQuestion, audit.ActionCreateQuestion}, f.sink.actions())
}

func TestCreateUnknownSubjectID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), 1, CreateInput{
		Text: "q", Options: []string{"a", "b"}, CorrectOption: 1, Subject: subject.Existing(999),
	})
	assert.ErrorIs(t, err, subject.ErrSubjectNotFound)
}

func TestInsertBatchReturnsIDsInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	subj, err := f.subjects.Create(ctx, 1, "Batch")
	require.NoError(t, err)

	rows := make([]NewQuestion, 0, 3)
	for i := 0; i < 3; i++ {
		rows = append(rows, NewQuestion{
			SubjectID:     subj.ID,
			Text:          fmt.Sprintf("row %d", i),
			Options:       []string{"x", "y"},
			CorrectOption: 1,
		})
	}
	ids, err := f.svc.InsertBatch(ctx, f.svc.db, rows)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	for i, id := range ids {
		got, err := f.svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("row %d", i), got.Text)
		assert.Equal(t, DifficultyMedium, got.Difficulty)
	}
}

func TestListPaginatesSearchesAndSorts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, "Photosynthesis basics", DifficultyHard, subject.NewByName("Biology"))
	f.create(t, "Cell division", DifficultyEasy, subject.NewByName("Biology"))
	f.create(t, "Newton's laws", DifficultyMedium, subject.NewByName("Physics"))

	page, err := f.svc.List(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)
	require.Len(t, page.Questions, 2)
	assert.Equal(t, "Newton's laws", page.Questions[0].Text)

	page, err = f.svc.List(ctx, ListQuery{Limit: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, page.Questions, 1)
	assert.Equal(t, "Photosynthesis basics", page.Questions[0].Text)

	page, err = f.svc.List(ctx, ListQuery{Search: "PHOTO"})
	require.NoError(t, err)
	require.Len(t, page.Questions, 1)

	page, err = f.svc.List(ctx, ListQuery{Sort: SortDifficulty})
	require.NoError(t, err)
	require.Len(t, page.Questions, 3)
	assert.Equal(t, DifficultyEasy, page.Questions[0].Difficulty)
	assert.Equal(t, DifficultyHard, page.Questions[2].Difficulty)

	page, err = f.svc.List(ctx, ListQuery{Sort: SortOldest})
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis basics", page.Questions[0].Text)

	page, err = f.svc.List(ctx, ListQuery{Sort: SortSubject})
	require.NoError(t, err)
	assert.Equal(t, "Biology", page.Questions[0].SubjectName)
	assert.Equal(t, "Physics", page.Questions[2].SubjectName)
}

func TestFindCriteria(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, "a", DifficultyEasy, subject.NewByName("S1"))
	b := f.create(t, "b", DifficultyHard, subject.NewByName("S1"))
	c := f.create(t, "c", DifficultyEasy, subject.NewByName("S2"))

	all, err := f.svc.Find(ctx, Criteria{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{c.ID, b.ID, a.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})

	easy, err := f.svc.Find(ctx, Criteria{Difficulty: DifficultyEasy})
	require.NoError(t, err)
	assert.Len(t, easy, 2)

	s1Easy, err := f.svc.Find(ctx, Criteria{SubjectID: a.SubjectID, Difficulty: DifficultyEasy})
	require.NoError(t, err)
	require.Len(t, s1Easy, 1)
	assert.Equal(t, a.ID, s1Easy[0].ID)

	byIDs, err := f.svc.Find(ctx, Criteria{IDs: []int64{a.ID, c.ID}, SubjectID: b.SubjectID, Difficulty: DifficultyHard})
	require.NoError(t, err)
	require.Len(t, byIDs, 2)
	assert.Equal(t, c.ID, byIDs[0].ID)

	from := b.CreatedAt
	to := b.CreatedAt
	ranged, err := f.svc.Find(ctx, Criteria{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, b.ID, ranged[0].ID)

	lone, err := f.svc.Find(ctx, Criteria{From: &from})
	require.NoError(t, err)
	assert.Len(t, lone, 3)

	none, err := f.svc.Find(ctx, Criteria{IDs: []int64{}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMoveAuditsOnlyOnChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q := f.create(t, "movable", "", subject.NewByName("From"))

	same, err := f.svc.Move(ctx, 1, q.ID, subject.Existing(q.SubjectID))
	require.NoError(t, err)
	assert.Equal(t, q.SubjectID, same.SubjectID)
	assert.NotContains(t, f.sink.actions(), audit.ActionMoveQuestion)

	moved, err := f.svc.Move(ctx, 1, q.ID, subject.NewByName("To"))
	require.NoError(t, err)
	assert.Equal(t, "To", moved.SubjectName)
	assert.Contains(t, f.sink.actions(), audit.ActionMoveQuestion)

	_, err = f.svc.Move(ctx, 1, q.ID+100, subject.NewByName("To"))
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestBulkMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, "a", "", subject.NewByName("Old"))
	b := f.create(t, "b", "", subject.NewByName("Old"))

	res, err := f.svc.BulkMove(ctx, 1, []int64{a.ID, b.ID, b.ID, 0}, subject.NewByName("New"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Moved)
	assert.Equal(t, "New", res.Subject.Name)
	assert.Contains(t, f.sink.actions(), audit.ActionBulkMove)

	got, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Subject.ID, got.SubjectID)

	_, err = f.svc.BulkMove(ctx, 1, nil, subject.NewByName("New"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteAuditsTruncatedText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	long := "This question text is intentionally longer than fifty characters in total."
	q := f.create(t, long, "", subject.NewByName("Any"))

	require.NoError(t, f.svc.Delete(ctx, 1, q.ID))
	_, err := f.svc.Get(ctx, q.ID)
	assert.ErrorIs(t, err, ErrQuestionNotFound)

	last := f.sink.entries[len(f.sink.entries)-1]
	assert.Equal(t, audit.ActionDeleteQuestion, last.Action)
	assert.Equal(t, "Deleted question: "+long[:50]+"...", last.Details)

	assert.ErrorIs(t, f.svc.Delete(ctx, 1, q.ID), ErrQuestionNotFound)
}
