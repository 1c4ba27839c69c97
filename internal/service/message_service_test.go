package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradlink/gradlink-api/internal/models"
	"github.com/gradlink/gradlink-api/internal/policy"
	"github.com/gradlink/gradlink-api/internal/repository"
	appErrors "github.com/gradlink/gradlink-api/pkg/errors"
)

type mockMessageRepo struct {
	messages   map[string]*models.Message
	marked     bool
	softErr    error
	softCalled []string
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{messages: make(map[string]*models.Message), marked: true}
}

func (m *mockMessageRepo) Create(ctx context.Context, message *models.Message) error {
	message.ID = "msg-1"
	m.messages[message.ID] = message
	return nil
}

func (m *mockMessageRepo) FindByID(ctx context.Context, id string) (*models.Message, error) {
	message, ok := m.messages[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return message, nil
}

func (m *mockMessageRepo) ListConversation(ctx context.Context, viewerID, otherID string) ([]models.MessageDetail, error) {
	var out []models.MessageDetail
	for _, msg := range m.messages {
		if (msg.SenderID == viewerID && msg.ReceiverID == otherID) ||
			(msg.SenderID == otherID && msg.ReceiverID == viewerID) {
			out = append(out, models.MessageDetail{Message: *msg})
		}
	}
	return out, nil
}

func (m *mockMessageRepo) MarkRead(ctx context.Context, id, receiverID string) (bool, error) {
	return m.marked, nil
}

func (m *mockMessageRepo) SoftDelete(ctx context.Context, id, userID string) error {
	m.softCalled = append(m.softCalled, id)
	return m.softErr
}

type mockMessageUsers struct {
	users     map[string]*models.User
	peers     []models.MessageablePeer
	lastRoles []models.UserRole
	lastDept  string
}

func (m *mockMessageUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockMessageUsers) ListActivePeers(ctx context.Context, departmentID, excludeID string, roles []models.UserRole) ([]models.MessageablePeer, error) {
	m.lastDept = departmentID
	m.lastRoles = roles
	return m.peers, nil
}

func (m *mockMessageUsers) ListActiveNonAdmin(ctx context.Context, excludeID string) ([]models.MessageablePeer, error) {
	var out []models.MessageablePeer
	for _, u := range m.users {
		if u.ID == excludeID || !u.Active || u.Role.IsAdminTier() {
			continue
		}
		out = append(out, models.MessageablePeer{ID: u.ID, Role: u.Role, DepartmentID: u.DepartmentID})
	}
	return out, nil
}

func messagingFixtures() (*mockMessageRepo, *mockMessageUsers, *MessageService) {
	repo := newMockMessageRepo()
	users := &mockMessageUsers{users: map[string]*models.User{
		"student-1": {ID: "student-1", Role: models.RoleStudent, DepartmentID: strPtr("dept-cs"), Active: true},
		"student-2": {ID: "student-2", Role: models.RoleStudent, DepartmentID: strPtr("dept-cs"), Active: true},
		"instr-1":   {ID: "instr-1", Role: models.RoleInstructor, DepartmentID: strPtr("dept-cs"), Active: true},
		"instr-2":   {ID: "instr-2", Role: models.RoleInstructor, DepartmentID: strPtr("dept-ee"), Active: true},
		"head-1":    {ID: "head-1", Role: models.RoleDepartmentHead, DepartmentID: strPtr("dept-cs"), Active: true},
		"admin-1":   {ID: "admin-1", Role: models.RoleAdmin, Active: true},
	}}
	svc := NewMessageService(repo, users, nil, 0, nil, nil)
	return repo, users, svc
}

func validSend(receiverID string) SendMessageRequest {
	return SendMessageRequest{ReceiverID: receiverID, Subject: "Progress check", Body: "How is the draft coming along?"}
}

func TestSendAllowsStudentToInstructorSameDepartment(t *testing.T) {
	_, _, svc := messagingFixtures()

	message, err := svc.Send(context.Background(), "student-1", validSend("instr-1"))
	require.NoError(t, err)
	assert.Equal(t, "student-1", message.SenderID)
	assert.Equal(t, "instr-1", message.ReceiverID)
}

func TestSendRejectsPeersAndSelf(t *testing.T) {
	_, _, svc := messagingFixtures()

	_, err := svc.Send(context.Background(), "student-1", validSend("student-2"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Send(context.Background(), "student-1", validSend("student-1"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestSendRejectsCrossDepartment(t *testing.T) {
	_, _, svc := messagingFixtures()

	_, err := svc.Send(context.Background(), "student-1", validSend("instr-2"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestSendAdminBypassesDepartmentScope(t *testing.T) {
	_, _, svc := messagingFixtures()

	message, err := svc.Send(context.Background(), "admin-1", validSend("instr-2"))
	require.NoError(t, err)
	assert.Equal(t, "admin-1", message.SenderID)
}

func TestSendReplyRequiresParticipation(t *testing.T) {
	repo, _, svc := messagingFixtures()
	repo.messages["parent-1"] = &models.Message{ID: "parent-1", SenderID: "student-2", ReceiverID: "instr-1"}

	req := validSend("instr-1")
	parent := "parent-1"
	req.ParentMessageID = &parent

	_, err := svc.Send(context.Background(), "student-1", req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestListConversationAllowsEitherDirection(t *testing.T) {
	repo, _, svc := messagingFixtures()
	repo.messages["msg-1"] = &models.Message{ID: "msg-1", SenderID: "instr-1", ReceiverID: "student-1", Subject: "hi"}

	messages, err := svc.ListConversation(context.Background(), "student-1", "instr-1")
	require.NoError(t, err)
	require.Len(t, messages, 1)

	_, err = svc.ListConversation(context.Background(), "student-1", "student-2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestGetMessageableUsersMatchesSendPolicy(t *testing.T) {
	_, users, svc := messagingFixtures()
	users.peers = []models.MessageablePeer{{ID: "instr-1", Role: models.RoleInstructor}}

	peers, err := svc.GetMessageableUsers(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "dept-cs", users.lastDept)
	assert.ElementsMatch(t, []models.UserRole{models.RoleInstructor, models.RoleDepartmentHead}, users.lastRoles)
}

func TestGetMessageableUsersForAdminListsAllNonAdmins(t *testing.T) {
	_, users, svc := messagingFixtures()

	peers, err := svc.GetMessageableUsers(context.Background(), "admin-1")
	require.NoError(t, err)

	admin := users.users["admin-1"].Actor()
	var want []string
	for id, u := range users.users {
		if u.Role.IsAdminTier() {
			continue
		}
		require.True(t, policy.CanMessage(admin, u.Actor()))
		want = append(want, id)
	}
	got := make([]string, 0, len(peers))
	for _, p := range peers {
		got = append(got, p.ID)
	}
	assert.ElementsMatch(t, want, got)
}

func TestGetMessageableUsersForInactiveCallerIsEmpty(t *testing.T) {
	_, users, svc := messagingFixtures()
	users.users["student-1"].Active = false
	users.peers = []models.MessageablePeer{{ID: "instr-1", Role: models.RoleInstructor}}

	peers, err := svc.GetMessageableUsers(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Empty(t, peers)
}

func TestMarkReadMapsMissingToNotFound(t *testing.T) {
	repo, _, svc := messagingFixtures()
	repo.marked = false

	err := svc.MarkRead(context.Background(), "msg-x", "student-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestDeleteMapsNonParticipantToForbidden(t *testing.T) {
	repo, _, svc := messagingFixtures()
	repo.softErr = repository.ErrNotParticipant

	err := svc.Delete(context.Background(), "msg-1", "student-2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
