package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradlink/gradlink-api/internal/models"
	appErrors "github.com/gradlink/gradlink-api/pkg/errors"
)

type mockFileRepo struct {
	files     map[string]*models.ProjectFile
	createErr error
	deleted   []string
}

func newMockFileRepo() *mockFileRepo {
	return &mockFileRepo{files: make(map[string]*models.ProjectFile)}
}

func (m *mockFileRepo) Create(ctx context.Context, file *models.ProjectFile) error {
	if m.createErr != nil {
		return m.createErr
	}
	file.ID = "file-1"
	m.files[file.ID] = file
	return nil
}

func (m *mockFileRepo) FindByID(ctx context.Context, id string) (*models.ProjectFile, error) {
	file, ok := m.files[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return file, nil
}

func (m *mockFileRepo) ListByProject(ctx context.Context, projectID string) ([]models.ProjectFile, error) {
	var out []models.ProjectFile
	for _, f := range m.files {
		if f.ProjectID == projectID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *mockFileRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.files, id)
	return nil
}

type mockFileStore struct {
	saved   []string
	removed []string
	saveErr error
}

func (m *mockFileStore) SaveStream(filename string, r io.Reader) (int64, error) {
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	m.saved = append(m.saved, filename)
	n, err := io.Copy(io.Discard, r)
	return n, err
}

func (m *mockFileStore) Remove(filename string) error {
	m.removed = append(m.removed, filename)
	return nil
}

func fileFixtures(status models.ProjectStatus) (*mockFileRepo, *mockFileStore, *FileService) {
	repo := newMockFileRepo()
	store := &mockFileStore{}
	projects := &stubProjectReader{project: &models.Project{ID: "proj-1", StudentID: "student-1", Status: status}}
	svc := NewFileService(repo, projects, store, 1024, []string{"application/pdf"}, nil)
	return repo, store, svc
}

func uploadRequest() UploadFileRequest {
	return UploadFileRequest{
		ProjectID: "proj-1",
		FileName:  "thesis-draft.pdf",
		MimeType:  "application/pdf",
		Size:      512,
		Content:   bytes.NewReader(bytes.Repeat([]byte("a"), 512)),
	}
}

func TestUploadStoresFileForApprovedProject(t *testing.T) {
	repo, store, svc := fileFixtures(models.ProjectStatusApproved)

	file, err := svc.Upload(context.Background(), "student-1", uploadRequest())
	require.NoError(t, err)
	assert.Equal(t, "proj-1", file.ProjectID)
	assert.Equal(t, "student-1", file.UploadedBy)
	assert.Equal(t, int64(512), file.SizeBytes)
	assert.Len(t, store.saved, 1)
	assert.Len(t, repo.files, 1)
}

func TestUploadRejectsNonOwner(t *testing.T) {
	_, store, svc := fileFixtures(models.ProjectStatusApproved)

	_, err := svc.Upload(context.Background(), "student-2", uploadRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, store.saved)
}

func TestUploadRejectsUnapprovedStatuses(t *testing.T) {
	for _, status := range []models.ProjectStatus{models.ProjectStatusDraft, models.ProjectStatusRejected} {
		_, store, svc := fileFixtures(status)

		_, err := svc.Upload(context.Background(), "student-1", uploadRequest())
		require.Error(t, err, "status %s", status)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
		assert.Contains(t, appErr.Message, string(status))
		assert.Empty(t, store.saved)
	}
}

func TestUploadValidatesSizeAndMime(t *testing.T) {
	_, _, svc := fileFixtures(models.ProjectStatusApproved)

	big := uploadRequest()
	big.Size = 4096
	_, err := svc.Upload(context.Background(), "student-1", big)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	exe := uploadRequest()
	exe.MimeType = "application/x-msdownload"
	_, err = svc.Upload(context.Background(), "student-1", exe)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestUploadCleansUpOrphanOnMetadataFailure(t *testing.T) {
	repo, store, svc := fileFixtures(models.ProjectStatusApproved)
	repo.createErr = errors.New("insert failed")

	_, err := svc.Upload(context.Background(), "student-1", uploadRequest())
	require.Error(t, err)
	require.Len(t, store.saved, 1)
	assert.Equal(t, store.saved, store.removed)
}

func TestDeleteFileRestrictedToUploader(t *testing.T) {
	repo, store, svc := fileFixtures(models.ProjectStatusApproved)
	file, err := svc.Upload(context.Background(), "student-1", uploadRequest())
	require.NoError(t, err)

	err = svc.Delete(context.Background(), file.ID, "student-2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.Delete(context.Background(), file.ID, "student-1"))
	assert.Equal(t, []string{file.ID}, repo.deleted)
	assert.Contains(t, store.removed, file.StoredPath)
}
