package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gradlink/gradlink-api/internal/models"
)

func actor(id string, role models.UserRole, dept string) models.Actor {
	a := models.Actor{ID: id, Role: role, Active: true}
	if dept != "" {
		a.DepartmentID = &dept
	}
	return a
}

func TestAllowsRoleGrants(t *testing.T) {
	cases := []struct {
		role    models.UserRole
		action  Action
		allowed bool
	}{
		{models.RoleStudent, ActionSubmitTitle, true},
		{models.RoleStudent, ActionDecideTitle, false},
		{models.RoleStudent, ActionUploadFile, true},
		{models.RoleInstructor, ActionDecideTitle, true},
		{models.RoleInstructor, ActionCreateEvaluation, true},
		{models.RoleInstructor, ActionAssignAdvisor, false},
		{models.RoleDepartmentHead, ActionAssignAdvisor, true},
		{models.RoleDepartmentHead, ActionDecideTitle, false},
		{models.RoleDepartmentHead, ActionAnnounce, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, Allows(tc.role, tc.action), "%s / %s", tc.role, tc.action)
	}
}

func TestAllowsAdminTiersImplicitly(t *testing.T) {
	for _, action := range []Action{ActionSubmitTitle, ActionDecideTitle, ActionAssignAdvisor, ActionUploadFile, ActionAnnounce} {
		assert.True(t, Allows(models.RoleAdmin, action), "admin / %s", action)
		assert.True(t, Allows(models.RoleSuperAdmin, action), "super_admin / %s", action)
	}
}

func TestCanMessagePairsWithinDepartment(t *testing.T) {
	student := actor("s1", models.RoleStudent, "cs")
	student2 := actor("s2", models.RoleStudent, "cs")
	instructor := actor("i1", models.RoleInstructor, "cs")
	instructor2 := actor("i2", models.RoleInstructor, "cs")
	head := actor("h1", models.RoleDepartmentHead, "cs")
	head2 := actor("h2", models.RoleDepartmentHead, "cs")

	assert.True(t, CanMessage(student, instructor))
	assert.True(t, CanMessage(student, head))
	assert.True(t, CanMessage(instructor, head))

	// Peers never message each other.
	assert.False(t, CanMessage(student, student2))
	assert.False(t, CanMessage(instructor, instructor2))
	assert.False(t, CanMessage(head, head2))
}

func TestCanMessageIsSymmetric(t *testing.T) {
	roles := []models.UserRole{models.RoleStudent, models.RoleInstructor, models.RoleDepartmentHead}
	for i, a := range roles {
		for j, b := range roles {
			left := actor("a", a, "cs")
			right := actor("b", b, "cs")
			assert.Equal(t, CanMessage(left, right), CanMessage(right, left), "%s vs %s (%d,%d)", a, b, i, j)
		}
	}
}

func TestCanMessageRequiresSameDepartment(t *testing.T) {
	student := actor("s1", models.RoleStudent, "cs")
	instructorOther := actor("i1", models.RoleInstructor, "ee")
	assert.False(t, CanMessage(student, instructorOther))

	noDept := actor("s2", models.RoleStudent, "")
	instructor := actor("i2", models.RoleInstructor, "cs")
	assert.False(t, CanMessage(noDept, instructor))
}

func TestCanMessageRejectsSelfAndInactive(t *testing.T) {
	student := actor("s1", models.RoleStudent, "cs")
	assert.False(t, CanMessage(student, student))

	admin := actor("adm", models.RoleAdmin, "")
	assert.False(t, CanMessage(admin, admin))

	inactive := actor("i1", models.RoleInstructor, "cs")
	inactive.Active = false
	assert.False(t, CanMessage(student, inactive))
	assert.False(t, CanMessage(inactive, student))
}

func TestCanMessageAdminBypass(t *testing.T) {
	admin := actor("adm", models.RoleAdmin, "")
	superAdmin := actor("sup", models.RoleSuperAdmin, "")
	student := actor("s1", models.RoleStudent, "cs")

	assert.True(t, CanMessage(admin, student))
	assert.True(t, CanMessage(student, admin))
	assert.True(t, CanMessage(superAdmin, admin))
}

func TestMessageablePeerRolesMirrorsPairs(t *testing.T) {
	assert.ElementsMatch(t, []models.UserRole{models.RoleInstructor, models.RoleDepartmentHead}, MessageablePeerRoles(models.RoleStudent))
	assert.ElementsMatch(t, []models.UserRole{models.RoleDepartmentHead, models.RoleStudent}, MessageablePeerRoles(models.RoleInstructor))
	assert.ElementsMatch(t, []models.UserRole{models.RoleInstructor, models.RoleStudent}, MessageablePeerRoles(models.RoleDepartmentHead))
	assert.Empty(t, MessageablePeerRoles(models.RoleAdmin))
}
