package importer

import "qbank/internal/question"

// Validate recomputes d's errors and validity. Previous errors are replaced.
func Validate(d Draft) Draft {
	errs := make([]string, 0, 2)
	if len(d.Options) < question.MinOptions {
		errs = append(errs, ErrTagTooFewOptions)
	}
	if n, ok := d.CorrectOptionIndex.Get(); !ok || n < 1 || n > len(d.Options) {
		errs = append(errs, ErrTagMissingAnswer)
	}
	d.Errors = errs
	d.IsValid = len(errs) == 0
	return d
}
