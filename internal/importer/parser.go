package importer

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"qbank/internal/question"
	"qbank/internal/subject"
)

var (
	headerRe = regexp.MustCompile(`(?i)^(Q\d*\.|Question\s\d+[:.]|\d+\.)\s*(.*)$`)
	optionRe = regexp.MustCompile(`^([A-Da-d])[).]\s*(.*)$`)
	answerRe = regexp.MustCompile(`(?i)^Answer:\s*([A-D])`)
)

// minDelimitedFields is question, four options and the answer.
const minDelimitedFields = 6

// Parse turns raw text into drafts targeting ref. Two layouts are recognised
// and may be mixed: numbered blocks with lettered option lines and an
// "Answer:" line, and single delimited lines (comma or tab separated) of the
// form text,a,b,c,d,answer. Drafts with fewer than two options are dropped.
// The returned drafts are not validated.
func Parse(text string, ref subject.Ref) []Draft {
	p := parser{ref: ref}
	for _, raw := range strings.Split(text, "\n") {
		line := norm.NFC.String(strings.TrimSpace(raw))
		if line == "" {
			continue
		}
		p.line(line)
	}
	p.flush()

	out := make([]Draft, 0, len(p.out))
	for _, d := range p.out {
		if len(d.Options) < question.MinOptions {
			continue
		}
		out = append(out, d)
	}
	return out
}

type parser struct {
	ref subject.Ref
	cur *Draft
	out []Draft
}

func (p *parser) line(line string) {
	if d, ok := parseDelimited(line); ok {
		d.Subject = p.ref
		p.out = append(p.out, d)
		return
	}

	if m := headerRe.FindStringSubmatch(line); m != nil {
		p.flush()
		p.cur = &Draft{Text: strings.TrimSpace(m[2]), Subject: p.ref}
		return
	}

	if p.cur == nil {
		return
	}

	if m := optionRe.FindStringSubmatch(line); m != nil {
		if len(p.cur.Options) < question.MaxOptions {
			p.cur.Options = append(p.cur.Options, strings.TrimSpace(m[2]))
		}
		return
	}

	if m := answerRe.FindStringSubmatch(line); m != nil {
		if n, ok := question.IndexForLetter(m[1]); ok {
			p.cur.CorrectOptionIndex = Answer(n)
		}
		return
	}

	if len(p.cur.Options) == 0 {
		if p.cur.Text == "" {
			p.cur.Text = line
		} else {
			p.cur.Text += " " + line
		}
	}
}

func (p *parser) flush() {
	if p.cur == nil {
		return
	}
	p.out = append(p.out, *p.cur)
	p.cur = nil
}

func parseDelimited(line string) (Draft, bool) {
	sep := ""
	switch {
	case strings.Contains(line, "\t"):
		sep = "\t"
	case strings.Contains(line, ","):
		sep = ","
	default:
		return Draft{}, false
	}

	fields := strings.Split(line, sep)
	if len(fields) < minDelimitedFields {
		return Draft{}, false
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	answer, ok := delimitedAnswer(fields[len(fields)-1])
	if !ok {
		return Draft{}, false
	}
	opts := make([]string, question.MaxOptions)
	copy(opts, fields[1:1+question.MaxOptions])
	return Draft{
		Text:               fields[0],
		Options:            opts,
		CorrectOptionIndex: Answer(answer),
	}, true
}

func delimitedAnswer(v string) (int, bool) {
	switch v {
	case "1", "2", "3", "4":
		return int(v[0] - '0'), true
	}
	return question.IndexForLetter(v)
}
