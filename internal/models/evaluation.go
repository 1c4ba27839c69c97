package models

import "time"

// EvaluationType enumerates the assessment kinds an instructor may record.
type EvaluationType string

const (
	EvaluationTypeProposal           EvaluationType = "proposal"
	EvaluationTypeProjectProgress    EvaluationType = "project_progress"
	EvaluationTypeFinalProject       EvaluationType = "final_project"
	EvaluationTypeTutorialAssignment EvaluationType = "tutorial_assignment"
)

// EvaluationTypes lists the allowed set for validation messages.
var EvaluationTypes = []EvaluationType{
	EvaluationTypeProposal,
	EvaluationTypeProjectProgress,
	EvaluationTypeFinalProject,
	EvaluationTypeTutorialAssignment,
}

// ValidEvaluationType reports enum membership.
func ValidEvaluationType(t EvaluationType) bool {
	for _, v := range EvaluationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// EvaluationStatus is the instructor's verdict on the evaluated work.
type EvaluationStatus string

const (
	EvaluationStatusApproved      EvaluationStatus = "Approved"
	EvaluationStatusNeedsRevision EvaluationStatus = "Needs Revision"
	EvaluationStatusRejected      EvaluationStatus = "Rejected"
)

// EvaluationStatuses lists the allowed set for validation messages.
var EvaluationStatuses = []EvaluationStatus{
	EvaluationStatusApproved,
	EvaluationStatusNeedsRevision,
	EvaluationStatusRejected,
}

// ValidEvaluationStatus reports enum membership.
func ValidEvaluationStatus(s EvaluationStatus) bool {
	for _, v := range EvaluationStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Evaluation is a scored assessment recorded against a project. StudentID is
// denormalized from the project at creation time and never re-derived.
type Evaluation struct {
	ID             string           `db:"id" json:"id"`
	ProjectID      string           `db:"project_id" json:"project_id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	InstructorID   string           `db:"instructor_id" json:"instructor_id"`
	EvaluationType EvaluationType   `db:"evaluation_type" json:"evaluation_type"`
	Score          float64          `db:"score" json:"score"`
	Feedback       string           `db:"feedback" json:"feedback"`
	Recommendation string           `db:"recommendation" json:"recommendation"`
	Status         EvaluationStatus `db:"status" json:"status"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// EvaluationPatch carries the mutable fields of an update; nil means unchanged.
type EvaluationPatch struct {
	EvaluationType *EvaluationType   `json:"evaluation_type,omitempty"`
	Score          *float64          `json:"score,omitempty"`
	Feedback       *string           `json:"feedback,omitempty"`
	Recommendation *string           `json:"recommendation,omitempty"`
	Status         *EvaluationStatus `json:"status,omitempty"`
}
