package models

import (
	"sort"
	"strings"
	"time"
)

// Branch is a student's academic discipline. The set is closed.
type Branch string

const (
	BranchCS Branch = "CS"
	BranchME Branch = "ME"
	BranchET Branch = "ET"
	BranchEE Branch = "EE"
)

// branchAliases maps accepted spellings onto canonical branches; EC and ET name the same department.
var branchAliases = map[string]Branch{
	"CS": BranchCS,
	"ME": BranchME,
	"ET": BranchET,
	"EC": BranchET,
	"EE": BranchEE,
}

// Branches lists every branch in display order.
func Branches() []Branch {
	return []Branch{BranchCS, BranchME, BranchET, BranchEE}
}

// ParseBranch normalises raw input, case-insensitively, into a Branch.
func ParseBranch(raw string) (Branch, bool) {
	b, ok := branchAliases[strings.ToUpper(strings.TrimSpace(raw))]
	return b, ok
}

// Spellings lists every stored spelling that resolves to b, canonical first.
func (b Branch) Spellings() []string {
	b = b.Canonical()
	spellings := []string{string(b)}
	for alias, target := range branchAliases {
		if target == b && alias != string(b) {
			spellings = append(spellings, alias)
		}
	}
	sort.Strings(spellings[1:])
	return spellings
}

// Canonical resolves aliases such as EC; unknown values are returned unchanged.
func (b Branch) Canonical() Branch {
	if canonical, ok := ParseBranch(string(b)); ok {
		return canonical
	}
	return b
}

// Valid returns true for canonical branch values.
func (b Branch) Valid() bool {
	switch b {
	case BranchCS, BranchME, BranchET, BranchEE:
		return true
	default:
		return false
	}
}

// Student is an entry in the student registry.
type Student struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	RollNumber     string    `db:"roll_number" json:"roll_number"`
	Branch         Branch    `db:"branch" json:"branch"`
	ClassLabel     string    `db:"class_label" json:"class_label"`
	CredentialHash string    `db:"credential_hash" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter narrows registry listings. Zero values match everything.
type StudentFilter struct {
	Branch     Branch
	ClassLabel string
	Search     string
	Page       int
	PageSize   int
}

// StudentDetail decorates a student with their attendance snapshot.
type StudentDetail struct {
	Student
	Attendance AttendanceSnapshot `json:"attendance"`
}
