package importer

import (
	"reflect"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		draft Draft
		want  []string
	}{
		{"valid", Draft{Options: []string{"a", "b"}, CorrectOptionIndex: Answer(2)}, []string{}},
		{"too few", Draft{Options: []string{"a"}, CorrectOptionIndex: Answer(1)}, []string{ErrTagTooFewOptions}},
		{"unset answer", Draft{Options: []string{"a", "b"}}, []string{ErrTagMissingAnswer}},
		{"answer too high", Draft{Options: []string{"a", "b"}, CorrectOptionIndex: Answer(3)}, []string{ErrTagMissingAnswer}},
		{"answer zero", Draft{Options: []string{"a", "b"}, CorrectOptionIndex: Answer(0)}, []string{ErrTagMissingAnswer}},
		{"both", Draft{}, []string{ErrTagTooFewOptions, ErrTagMissingAnswer}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Validate(tc.draft)
			if !reflect.DeepEqual(got.Errors, tc.want) {
				t.Fatalf("errors=%v, want %v", got.Errors, tc.want)
			}
			if got.IsValid != (len(tc.want) == 0) {
				t.Fatalf("IsValid=%v with errors %v", got.IsValid, got.Errors)
			}
		})
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	drafts := []Draft{
		{Options: []string{"a", "b", "c"}, CorrectOptionIndex: Answer(3)},
		{Options: []string{"a"}},
	}
	for _, d := range drafts {
		once := Validate(d)
		twice := Validate(once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("not idempotent: %+v vs %+v", once, twice)
		}
	}
}

func TestValidateReplacesStaleErrors(t *testing.T) {
	d := Draft{
		Options:            []string{"a", "b"},
		CorrectOptionIndex: Answer(1),
		Errors:             []string{ErrTagMissingAnswer},
	}
	got := Validate(d)
	if len(got.Errors) != 0 || !got.IsValid {
		t.Fatalf("expected stale errors to be cleared, got %+v", got)
	}
}
