package models

import (
	"strconv"
	"strings"
	"unicode"
)

// ClassLabel is the parsed form of a "<CODE> <N>" class string such as "CS 3".
type ClassLabel struct {
	Code     string
	Semester int
}

// ParseClassLabel parses raw labels. Labels come from free-text admin input, so anything other
// than exactly a letter code and a non-negative integer separated by whitespace is reported as
// unparseable rather than guessed at. Semester 0 is a valid pre-first-semester class.
func ParseClassLabel(raw string) (ClassLabel, bool) {
	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return ClassLabel{}, false
	}
	code := parts[0]
	for _, r := range code {
		if !unicode.IsLetter(r) {
			return ClassLabel{}, false
		}
	}
	if strings.HasPrefix(parts[1], "-") {
		return ClassLabel{}, false
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 0 {
		return ClassLabel{}, false
	}
	return ClassLabel{Code: code, Semester: n}, true
}

// String renders the canonical "<CODE> <N>" form.
func (l ClassLabel) String() string {
	return l.Code + " " + strconv.Itoa(l.Semester)
}

// EligibleForPromotion reports whether the label sits below the final semester.
func (l ClassLabel) EligibleForPromotion(finalSemester int) bool {
	return l.Semester < finalSemester
}

// Matches compares labels ignoring the case of the code.
func (l ClassLabel) Matches(other ClassLabel) bool {
	return l.Semester == other.Semester && strings.EqualFold(l.Code, other.Code)
}

// Next returns the label one semester later.
func (l ClassLabel) Next() ClassLabel {
	return ClassLabel{Code: l.Code, Semester: l.Semester + 1}
}

// Branch resolves the label's code into a branch when it names one.
func (l ClassLabel) Branch() (Branch, bool) {
	return ParseBranch(l.Code)
}
