package importer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qbank/internal/audit"
	"qbank/internal/db/dbtest"
	"qbank/internal/question"
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

type committerFixture struct {
	committer *Committer
	subjects  *subject.Service
	questions *question.Service
	sink      *recordingSink
}

func newCommitterFixture(t *testing.T) *committerFixture {
	t.Helper()
	conn := dbtest.Open(t)
	sink := &recordingSink{}
	subjects := subject.NewService(conn, nil)
	questions := question.NewService(conn, subjects, nil)
	c := NewCommitter(conn, subjects, questions, sink)
	c.batchID = func() string { return "batch-1" }
	return &committerFixture{committer: c, subjects: subjects, questions: questions, sink: sink}
}

func validDraft(text string, ref subject.Ref) Draft {
	return Validate(Draft{Text: text, Options: []string{"x", "y", "z"}, CorrectOptionIndex: Answer(3), Subject: ref})
}

func countQuestions(t *testing.T, qs *question.Service) int {
	t.Helper()
	page, err := qs.List(context.Background(), question.ListQuery{})
	require.NoError(t, err)
	return page.Total
}

func TestCommitWritesAllRowsAndAudits(t *testing.T) {
	f := newCommitterFixture(t)
	ctx := context.Background()

	res, err := f.committer.Commit(ctx, 5, []Draft{
		validDraft("first", subject.NewByName("Geology")),
		validDraft("second", subject.NewByName("Geology")),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ImportedCount)
	require.Len(t, res.QuestionIDs, 2)
	require.Len(t, res.SubjectIDs, 1)
	assert.Equal(t, "batch-1", res.BatchID)

	first, err := f.questions.Get(ctx, res.QuestionIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "first", first.Text)
	assert.Equal(t, "Geology", first.SubjectName)
	assert.Equal(t, 3, first.CorrectOption)
	assert.Equal(t, question.DifficultyMedium, first.Difficulty)

	require.Len(t, f.sink.entries, 1)
	entry := f.sink.entries[0]
	assert.Equal(t, audit.ActionImportQuestions, entry.Action)
	assert.Equal(t, 2, entry.Payload["count"])
	assert.Equal(t, "batch-1", entry.Payload["batch_id"])
	require.NotNil(t, entry.UserID)
	assert.Equal(t, int64(5), *entry.UserID)
}

func TestCommitRepeatedCustomNameConverges(t *testing.T) {
	f := newCommitterFixture(t)
	ctx := context.Background()

	a, err := f.committer.Commit(ctx, 1, []Draft{validDraft("a", subject.NewByName("Latin"))})
	require.NoError(t, err)
	b, err := f.committer.Commit(ctx, 1, []Draft{validDraft("b", subject.NewByName(" Latin "))})
	require.NoError(t, err)
	assert.Equal(t, a.SubjectIDs, b.SubjectIDs)

	items, err := f.subjects.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCommitUnresolvableRowWritesNothing(t *testing.T) {
	f := newCommitterFixture(t)
	ctx := context.Background()

	_, err := f.committer.Commit(ctx, 1, []Draft{
		validDraft("ok", subject.NewByName("Created In Tx")),
		validDraft("bad", subject.Existing(4242)),
	})
	var resErr *SubjectResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, 1, resErr.Index)
	assert.True(t, errors.Is(err, ErrSubjectResolution))

	assert.Equal(t, 0, countQuestions(t, f.questions))
	items, err := f.subjects.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items, "subject created inside the failed transaction must be rolled back")
	assert.Empty(t, f.sink.entries)
}

func TestCommitMissingSubjectFailsBeforeWrites(t *testing.T) {
	f := newCommitterFixture(t)

	_, err := f.committer.Commit(context.Background(), 1, []Draft{
		validDraft("ok", subject.NewByName("Any")),
		validDraft("no subject", subject.Ref{}),
	})
	var resErr *SubjectResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, 1, resErr.Index)
	assert.Equal(t, 0, countQuestions(t, f.questions))
}

func TestCommitRejectsInvalidAndEmpty(t *testing.T) {
	f := newCommitterFixture(t)
	ctx := context.Background()

	_, err := f.committer.Commit(ctx, 1, nil)
	assert.ErrorIs(t, err, ErrNothingToImport)

	bad := Draft{Text: "q", Options: []string{"a", "b"}, Subject: subject.Existing(1)}
	_, err = f.committer.Commit(ctx, 1, []Draft{bad})
	assert.ErrorIs(t, err, ErrInvalidDraft)

	tooMany := Draft{Text: "q", Options: []string{"a", "b", "c", "d", "e"}, CorrectOptionIndex: Answer(1), Subject: subject.Existing(1)}
	_, err = f.committer.Commit(ctx, 1, []Draft{tooMany})
	assert.ErrorIs(t, err, ErrInvalidDraft)
}

func TestCommitMixedSubjects(t *testing.T) {
	f := newCommitterFixture(t)
	ctx := context.Background()

	existing, err := f.subjects.Create(ctx, 1, "Existing")
	require.NoError(t, err)

	res, err := f.committer.Commit(ctx, 1, []Draft{
		validDraft("one", subject.Existing(existing.ID)),
		validDraft("two", subject.NewByName("Fresh")),
		validDraft("three", subject.Existing(existing.ID)),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ImportedCount)
	require.Len(t, res.SubjectIDs, 2)
	assert.Equal(t, existing.ID, res.SubjectIDs[0])
}
