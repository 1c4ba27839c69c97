package models

import "time"

// ProjectStatus tracks the title approval lifecycle.
type ProjectStatus string

const (
	ProjectStatusDraft    ProjectStatus = "draft"
	ProjectStatusApproved ProjectStatus = "approved"
	ProjectStatusRejected ProjectStatus = "rejected"

	// ProjectStatusSubmitted exists in the persisted enum for external
	// readers of the table; the workflow engine never produces it.
	ProjectStatusSubmitted ProjectStatus = "submitted"
)

// Project represents a student project moving through title approval and advising.
// InstructorID is the title-approval instructor fixed at creation; AdvisorID is
// assigned later by a department head and is independent of InstructorID.
type Project struct {
	ID           string        `db:"id" json:"id"`
	StudentID    string        `db:"student_id" json:"student_id"`
	InstructorID string        `db:"instructor_id" json:"instructor_id"`
	AdvisorID    *string       `db:"advisor_id" json:"advisor_id,omitempty"`
	AssignedBy   *string       `db:"assigned_by" json:"assigned_by,omitempty"`
	AssignedAt   *time.Time    `db:"assigned_at" json:"assigned_at,omitempty"`
	Title        string        `db:"title" json:"title"`
	Description  string        `db:"description" json:"description"`
	Status       ProjectStatus `db:"status" json:"status"`
	SubmittedAt  *time.Time    `db:"submitted_at" json:"submitted_at,omitempty"`
	ApprovedAt   *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
	RejectedAt   *time.Time    `db:"rejected_at" json:"rejected_at,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// ProjectDetail enriches a project with display names and the student's department.
type ProjectDetail struct {
	Project
	StudentName         string  `db:"student_name" json:"student_name"`
	StudentDepartmentID *string `db:"student_department_id" json:"student_department_id,omitempty"`
	InstructorName      string  `db:"instructor_name" json:"instructor_name"`
	AdvisorName         *string `db:"advisor_name" json:"advisor_name,omitempty"`
}

// ProjectFilter captures criteria for department-scoped project views.
type ProjectFilter struct {
	DepartmentID string
	Status       ProjectStatus
	HasAdvisor   *bool
	Page         int
	PageSize     int
}
