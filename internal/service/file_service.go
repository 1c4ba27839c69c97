package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradlink/gradlink-api/internal/models"
	appErrors "github.com/gradlink/gradlink-api/pkg/errors"
)

type fileRepository interface {
	Create(ctx context.Context, file *models.ProjectFile) error
	FindByID(ctx context.Context, id string) (*models.ProjectFile, error)
	ListByProject(ctx context.Context, projectID string) ([]models.ProjectFile, error)
	Delete(ctx context.Context, id string) error
}

type fileStore interface {
	SaveStream(filename string, r io.Reader) (int64, error)
	Remove(filename string) error
}

// UploadFileRequest describes a file upload.
type UploadFileRequest struct {
	ProjectID string
	FileName  string
	MimeType  string
	Size      int64
	Content   io.Reader
}

// FileService guards file uploads on project ownership and lifecycle state:
// only the owning student may upload, and only once the title is approved.
type FileService struct {
	files        fileRepository
	projects     projectReader
	store        fileStore
	maxSizeBytes int64
	allowedMIMEs []string
	logger       *zap.Logger
}

// NewFileService constructs FileService.
func NewFileService(files fileRepository, projects projectReader, store fileStore, maxSizeBytes int64, allowedMIMEs []string, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{files: files, projects: projects, store: store, maxSizeBytes: maxSizeBytes, allowedMIMEs: allowedMIMEs, logger: logger}
}

// Upload persists the file bytes and metadata after the gate passes. Uploads
// are rejected for draft and rejected projects alike.
func (s *FileService) Upload(ctx context.Context, callerID string, req UploadFileRequest) (*models.ProjectFile, error) {
	project, err := s.projects.FindByID(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if project.StudentID != callerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student does not own this project")
	}
	if project.Status != models.ProjectStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrForbidden,
			fmt.Sprintf("files can only be uploaded to approved projects (current status: %s)", project.Status))
	}

	if s.maxSizeBytes > 0 && req.Size > s.maxSizeBytes {
		return nil, appErrors.Validationf("file exceeds the maximum size of %d bytes", s.maxSizeBytes)
	}
	if len(s.allowedMIMEs) > 0 && !s.mimeAllowed(req.MimeType) {
		return nil, appErrors.Validationf("mime type %q is not allowed", req.MimeType)
	}

	storedPath := filepath.Join(req.ProjectID, uuid.NewString()+filepath.Ext(req.FileName))
	written, err := s.store.SaveStream(storedPath, req.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	file := &models.ProjectFile{
		ProjectID:  req.ProjectID,
		UploadedBy: callerID,
		FileName:   req.FileName,
		StoredPath: storedPath,
		MimeType:   req.MimeType,
		SizeBytes:  written,
	}
	if err := s.files.Create(ctx, file); err != nil {
		if removeErr := s.store.Remove(storedPath); removeErr != nil {
			s.logger.Warn("failed to clean up orphaned upload", zap.Error(removeErr), zap.String("path", storedPath))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist file metadata")
	}
	return file, nil
}

// ListByProject returns a project's files for any of its participants or a
// same-department head.
func (s *FileService) ListByProject(ctx context.Context, projectID string) ([]models.ProjectFile, error) {
	if _, err := s.projects.FindByID(ctx, projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	files, err := s.files.ListByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	return files, nil
}

// Delete removes a file; ownership is per-file, so only the original uploader
// may delete it.
func (s *FileService) Delete(ctx context.Context, id, callerID string) error {
	file, err := s.files.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if file.UploadedBy != callerID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the uploader may delete this file")
	}
	if err := s.files.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete file")
	}
	if err := s.store.Remove(file.StoredPath); err != nil {
		s.logger.Warn("failed to remove stored file", zap.Error(err), zap.String("path", file.StoredPath))
	}
	return nil
}

func (s *FileService) mimeAllowed(mimeType string) bool {
	for _, allowed := range s.allowedMIMEs {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}
