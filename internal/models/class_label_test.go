package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseClassLabel(t *testing.T) {
	cases := []struct {
		raw  string
		want ClassLabel
		ok   bool
	}{
		{raw: "CS 3", want: ClassLabel{Code: "CS", Semester: 3}, ok: true},
		{raw: "  ME   5 ", want: ClassLabel{Code: "ME", Semester: 5}, ok: true},
		{raw: "ee 1", want: ClassLabel{Code: "ee", Semester: 1}, ok: true},
		{raw: "Freshman"},
		{raw: "CS"},
		{raw: "CS 0", want: ClassLabel{Code: "CS", Semester: 0}, ok: true},
		{raw: "CS 02", want: ClassLabel{Code: "CS", Semester: 2}, ok: true},
		{raw: "CS -1"},
		{raw: "CS -0"},
		{raw: "CS 3a"},
		{raw: "C5 3"},
		{raw: "CS 3 A"},
		{raw: ""},
	}
	for _, tc := range cases {
		got, ok := ParseClassLabel(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestClassLabelTransitions(t *testing.T) {
	const final = 6
	for raw, next := range map[string]string{"CS 0": "CS 1", "CS 1": "CS 2", "ME 5": "ME 6"} {
		label, ok := ParseClassLabel(raw)
		assert.True(t, ok)
		assert.True(t, label.EligibleForPromotion(final))
		assert.Equal(t, next, label.Next().String())
	}

	label, ok := ParseClassLabel("EE 6")
	assert.True(t, ok)
	assert.False(t, label.EligibleForPromotion(final))
}

func TestClassLabelMatchesIgnoresCodeCase(t *testing.T) {
	a, _ := ParseClassLabel("cs 2")
	b, _ := ParseClassLabel("CS 2")
	c, _ := ParseClassLabel("CS 3")
	assert.True(t, a.Matches(b))
	assert.False(t, b.Matches(c))
}

func TestParseBranch(t *testing.T) {
	branch, ok := ParseBranch("ec")
	assert.True(t, ok)
	assert.Equal(t, BranchET, branch)

	_, ok = ParseBranch("civil")
	assert.False(t, ok)
}

func TestBranchSpellingsAndCanonical(t *testing.T) {
	assert.Equal(t, []string{"ET", "EC"}, BranchET.Spellings())
	assert.Equal(t, []string{"ET", "EC"}, Branch("EC").Spellings())
	assert.Equal(t, []string{"CS"}, BranchCS.Spellings())

	assert.Equal(t, BranchET, Branch("EC").Canonical())
	assert.Equal(t, BranchET, Branch("ec").Canonical())
	assert.Equal(t, Branch("XX"), Branch("XX").Canonical())
}
