// Package policy holds the role and department rules of the academic workflow
// as declarative tables, so they can be audited and tested apart from handlers.
package policy

import "github.com/gradlink/gradlink-api/internal/models"

// Action names a guarded workflow operation.
type Action string

const (
	ActionSubmitTitle      Action = "project.submit_title"
	ActionDecideTitle      Action = "project.decide_title"
	ActionViewOwnProject   Action = "project.view_own"
	ActionCreateEvaluation Action = "evaluation.create"
	ActionManageEvaluation Action = "evaluation.manage"
	ActionAssignAdvisor    Action = "advisor.assign"
	ActionViewAdvising     Action = "advisor.view"
	ActionUploadFile       Action = "file.upload"
	ActionSendMessage      Action = "message.send"
	ActionAnnounce         Action = "notification.announce"
)

// grants maps each action to the roles allowed to perform it. Department and
// ownership constraints remain with the managers; this table answers only the
// role question the handlers ask up front.
var grants = map[Action][]models.UserRole{
	ActionSubmitTitle:      {models.RoleStudent},
	ActionDecideTitle:      {models.RoleInstructor},
	ActionViewOwnProject:   {models.RoleStudent},
	ActionCreateEvaluation: {models.RoleInstructor},
	ActionManageEvaluation: {models.RoleInstructor},
	ActionAssignAdvisor:    {models.RoleDepartmentHead},
	ActionViewAdvising:     {models.RoleDepartmentHead},
	ActionUploadFile:       {models.RoleStudent},
	ActionSendMessage: {
		models.RoleStudent, models.RoleInstructor, models.RoleDepartmentHead,
		models.RoleAdmin, models.RoleSuperAdmin,
	},
	ActionAnnounce: {models.RoleDepartmentHead},
}

// Allows reports whether the role may perform the action at all. Admin tiers
// are granted every action implicitly.
func Allows(role models.UserRole, action Action) bool {
	if role.IsAdminTier() {
		return true
	}
	for _, allowed := range grants[action] {
		if allowed == role {
			return true
		}
	}
	return false
}

// messagingPairs lists the role pairs allowed to exchange messages inside one
// department. The table is symmetric by construction.
var messagingPairs = map[models.UserRole][]models.UserRole{
	models.RoleDepartmentHead: {models.RoleInstructor, models.RoleStudent},
	models.RoleInstructor:     {models.RoleDepartmentHead, models.RoleStudent},
	models.RoleStudent:        {models.RoleDepartmentHead, models.RoleInstructor},
}

// CanMessage decides whether sender may message receiver. Admin tiers can
// reach anyone and be reached by anyone; everyone else must be active, share a
// department, and form one of the allowed role pairs. Self-messaging is never
// allowed.
func CanMessage(sender, receiver models.Actor) bool {
	if sender.ID == receiver.ID {
		return false
	}
	if sender.Role.IsAdminTier() || receiver.Role.IsAdminTier() {
		return true
	}
	if !sender.Active || !receiver.Active {
		return false
	}
	if !sender.SameDepartment(receiver) {
		return false
	}
	for _, peer := range messagingPairs[sender.Role] {
		if peer == receiver.Role {
			return true
		}
	}
	return false
}

// MessageablePeerRoles returns the roles a non-admin actor may message within
// its department. Used to enumerate peers without scanning every user pair.
func MessageablePeerRoles(role models.UserRole) []models.UserRole {
	peers := messagingPairs[role]
	out := make([]models.UserRole, len(peers))
	copy(out, peers)
	return out
}
