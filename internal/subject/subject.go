package subject

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

type Subject struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Ref names the subject a question should land in: either an existing row or
// a name to find or create. The zero Ref is unset.
type Ref struct {
	id   int64
	name string
}

func Existing(id int64) Ref {
	if id <= 0 {
		return Ref{}
	}
	return Ref{id: id}
}

func NewByName(name string) Ref {
	return Ref{name: NormalizeName(name)}
}

// FromRequest builds a Ref from the id/custom-name pair clients send. A
// non-blank custom name takes precedence over the id.
func FromRequest(id int64, customName string) Ref {
	if n := NormalizeName(customName); n != "" {
		return Ref{name: n}
	}
	return Existing(id)
}

func (r Ref) IsZero() bool {
	return r.id <= 0 && r.name == ""
}

func (r Ref) ID() (int64, bool) {
	return r.id, r.id > 0 && r.name == ""
}

func (r Ref) Name() (string, bool) {
	return r.name, r.name != ""
}

func (r Ref) String() string {
	switch {
	case r.name != "":
		return "name:" + r.name
	case r.id > 0:
		return "id:" + strconv.FormatInt(r.id, 10)
	default:
		return "unset"
	}
}

// NormalizeName trims and NFC-normalises a subject name so that visually
// identical names compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
