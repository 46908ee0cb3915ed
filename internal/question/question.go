package question

import (
	"strings"
	"time"
)

const (
	MinOptions = 2
	MaxOptions = 4
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty accepts easy, medium or hard in any case. The empty string
// parses to the empty difficulty.
func ParseDifficulty(v string) (Difficulty, bool) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(v))) {
	case "":
		return "", true
	case DifficultyEasy:
		return DifficultyEasy, true
	case DifficultyMedium:
		return DifficultyMedium, true
	case DifficultyHard:
		return DifficultyHard, true
	default:
		return "", false
	}
}

func (d Difficulty) OrDefault() Difficulty {
	if d == "" {
		return DifficultyMedium
	}
	return d
}

// Question is the canonical stored record. CorrectOption is 1-based.
type Question struct {
	ID            int64      `json:"id"`
	SubjectID     int64      `json:"subject_id"`
	SubjectName   string     `json:"subject_name"`
	Text          string     `json:"text"`
	Options       []string   `json:"options"`
	CorrectOption int        `json:"correct_option"`
	Difficulty    Difficulty `json:"difficulty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (q Question) CorrectLetter() string {
	return LetterFor(q.CorrectOption)
}

// LetterFor maps 1..4 to A..D; anything else yields "".
func LetterFor(index int) string {
	if index < 1 || index > MaxOptions {
		return ""
	}
	return string(rune('A' + index - 1))
}

// IndexForLetter maps A..D (either case) to 1..4.
func IndexForLetter(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if len(v) != 1 {
		return 0, false
	}
	c := v[0]
	switch {
	case c >= 'A' && c <= 'D':
		return int(c-'A') + 1, true
	case c >= 'a' && c <= 'd':
		return int(c-'a') + 1, true
	default:
		return 0, false
	}
}

// NewQuestion is a validated row ready for insertion.
type NewQuestion struct {
	SubjectID     int64
	Text          string
	Options       []string
	CorrectOption int
	Difficulty    Difficulty
}

// Criteria selects questions for Find. A non-nil IDs slice is authoritative
// and every other field is ignored.
type Criteria struct {
	IDs        []int64
	SubjectID  int64
	Difficulty Difficulty
	From       *time.Time
	To         *time.Time
}

type Sort string

const (
	SortNewest     Sort = "newest"
	SortOldest     Sort = "oldest"
	SortDifficulty Sort = "difficulty"
	SortSubject    Sort = "subject"
)

type ListQuery struct {
	Search     string
	SubjectID  int64
	Difficulty Difficulty
	Sort       Sort
	Page       int
	Limit      int
}

type Page struct {
	Total       int        `json:"total"`
	TotalPages  int        `json:"total_pages"`
	CurrentPage int        `json:"current_page"`
	Questions   []Question `json:"questions"`
}
