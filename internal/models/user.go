package models

import "time"

// UserRole enumerates the roles known to the authorization engine.
type UserRole string

const (
	RoleStudent        UserRole = "student"
	RoleInstructor     UserRole = "instructor"
	RoleDepartmentHead UserRole = "department_head"
	RoleAdmin          UserRole = "admin"
	RoleSuperAdmin     UserRole = "super_admin"
)

// IsAdminTier reports whether the role bypasses department scoping.
func (r UserRole) IsAdminTier() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User represents an application user stored in the users table.
// Role and department are immutable from the workflow engine's perspective.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Actor is the verified identity context every workflow operation receives.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role, DepartmentID: u.DepartmentID, Active: u.Active}
}

// Actor carries the caller attributes the policy layer decides on.
type Actor struct {
	ID           string   `json:"id"`
	Role         UserRole `json:"role"`
	DepartmentID *string  `json:"department_id,omitempty"`
	Active       bool     `json:"active"`
}

// SameDepartment reports whether both actors carry the same non-null department.
func (a Actor) SameDepartment(b Actor) bool {
	if a.DepartmentID == nil || b.DepartmentID == nil {
		return false
	}
	return *a.DepartmentID == *b.DepartmentID
}

// InstructorLoad pairs an instructor with the number of projects currently advised.
type InstructorLoad struct {
	ID           string  `db:"id" json:"id"`
	FullName     string  `db:"full_name" json:"full_name"`
	Email        string  `db:"email" json:"email"`
	DepartmentID *string `db:"department_id" json:"department_id,omitempty"`
	AdvisedCount int     `db:"advised_count" json:"advised_count"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
