package models

import "time"

// FilterAll matches every branch or class.
const FilterAll = "all"

// PromotionRequest selects the students a promotion should consider.
type PromotionRequest struct {
	BranchFilter string `json:"branch" validate:"omitempty,branch_filter"`
	ClassFilter  string `json:"class" validate:"omitempty,class_filter"`
}

// PromotionEntry is one student's planned move.
type PromotionEntry struct {
	StudentID         string `json:"student_id"`
	StudentName       string `json:"student_name"`
	RollNumber        string `json:"roll_number"`
	Branch            Branch `json:"branch"`
	CurrentClassLabel string `json:"current_class_label"`
	NextClassLabel    string `json:"next_class_label"`
	BranchMismatch    bool   `json:"branch_mismatch,omitempty"`
}

// PromotionPlan is the concrete, side-effect-free result of a preview.
type PromotionPlan struct {
	ID            string           `json:"plan_id"`
	BranchFilter  string           `json:"branch"`
	ClassFilter   string           `json:"class"`
	FinalSemester int              `json:"final_semester"`
	Entries       []PromotionEntry `json:"entries"`
	AffectedCount int              `json:"affected_count"`
	CreatedAt     time.Time        `json:"created_at"`
	ExpiresAt     time.Time        `json:"expires_at"`
}

// CommitMode controls how a commit reacts to write failures.
type CommitMode string

const (
	CommitModeAtomic         CommitMode = "atomic"
	CommitModePartialOnError CommitMode = "partialOnError"
)

// Valid reports whether the mode is supported.
func (m CommitMode) Valid() bool {
	return m == CommitModeAtomic || m == CommitModePartialOnError
}

// CommitStatus summarises a commit.
type CommitStatus string

const (
	CommitStatusApplied  CommitStatus = "APPLIED"
	CommitStatusPartial  CommitStatus = "PARTIAL"
	CommitStatusRejected CommitStatus = "REJECTED"
)

// ExclusionReason explains why a planned student was skipped at commit time.
type ExclusionReason string

const (
	ExclusionNotFound               ExclusionReason = "NOT_FOUND"
	ExclusionConcurrentModification ExclusionReason = "CONCURRENT_MODIFICATION"
	ExclusionNotEligible            ExclusionReason = "NOT_ELIGIBLE"
)

// PromotionOutcome records an applied label change.
type PromotionOutcome struct {
	StudentID      string `json:"student_id"`
	FromClassLabel string `json:"from_class_label"`
	ToClassLabel   string `json:"to_class_label"`
}

// PromotionExclusion records a planned student that no longer qualified.
type PromotionExclusion struct {
	StudentID string          `json:"student_id"`
	Reason    ExclusionReason `json:"reason"`
	Detail    string          `json:"detail,omitempty"`
}

// PromotionFailure records a planned update that could not be written.
type PromotionFailure struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// CommitResult is the structured outcome of committing a plan.
type CommitResult struct {
	PlanID      string               `json:"plan_id"`
	Mode        CommitMode           `json:"mode"`
	Status      CommitStatus         `json:"status"`
	Applied     []PromotionOutcome   `json:"applied"`
	Excluded    []PromotionExclusion `json:"excluded"`
	Failed      []PromotionFailure   `json:"failed"`
	CommittedAt time.Time            `json:"committed_at"`
}

// Resolve derives Status from the applied and failed sets.
func (r *CommitResult) Resolve() {
	switch {
	case len(r.Failed) == 0:
		r.Status = CommitStatusApplied
	case len(r.Applied) > 0:
		r.Status = CommitStatusPartial
	default:
		r.Status = CommitStatusRejected
	}
}
