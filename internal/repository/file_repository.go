package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gradlink/gradlink-api/internal/models"
)

// FileRepository handles persistence of project file metadata.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs the repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `id, project_id, uploaded_by, file_name, stored_path, mime_type, size_bytes, created_at`

// Create persists file metadata for an upload.
func (r *FileRepository) Create(ctx context.Context, file *models.ProjectFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO project_files (id, project_id, uploaded_by, file_name, stored_path, mime_type, size_bytes, created_at)
        VALUES (:id, :project_id, :uploaded_by, :file_name, :stored_path, :mime_type, :size_bytes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("create project file: %w", err)
	}
	return nil
}

// FindByID returns file metadata by its ID.
func (r *FileRepository) FindByID(ctx context.Context, id string) (*models.ProjectFile, error) {
	query := fmt.Sprintf(`SELECT %s FROM project_files WHERE id = $1`, fileColumns)
	var file models.ProjectFile
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		return nil, err
	}
	return &file, nil
}

// ListByProject returns a project's files, newest first.
func (r *FileRepository) ListByProject(ctx context.Context, projectID string) ([]models.ProjectFile, error) {
	query := fmt.Sprintf(`SELECT %s FROM project_files WHERE project_id = $1 ORDER BY created_at DESC`, fileColumns)
	var files []models.ProjectFile
	if err := r.db.SelectContext(ctx, &files, query, projectID); err != nil {
		return nil, fmt.Errorf("list project files: %w", err)
	}
	return files, nil
}

// Delete removes file metadata.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM project_files WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete project file: %w", err)
	}
	return nil
}
