package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/univlab/campus-api/internal/models"
)

// MaterialRepository provides persistence for course materials.
type MaterialRepository struct {
	db *sqlx.DB
}

// NewMaterialRepository creates the repository.
func NewMaterialRepository(db *sqlx.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// FindByID returns a material by identifier.
func (r *MaterialRepository) FindByID(ctx context.Context, id string) (*models.Material, error) {
	const query = `SELECT id, module_id, title, file_name, file_path, mime_type, size_bytes, uploaded_by, created_at FROM materials WHERE id = $1`
	var material models.Material
	if err := r.db.GetContext(ctx, &material, query, id); err != nil {
		return nil, err
	}
	return &material, nil
}

// ListByModule returns materials attached to a module, newest first.
func (r *MaterialRepository) ListByModule(ctx context.Context, moduleID string) ([]models.Material, error) {
	const query = `SELECT id, module_id, title, file_name, file_path, mime_type, size_bytes, uploaded_by, created_at
FROM materials WHERE module_id = $1 ORDER BY created_at DESC`
	var materials []models.Material
	if err := r.db.SelectContext(ctx, &materials, query, moduleID); err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	return materials, nil
}

// Create inserts a new material record.
func (r *MaterialRepository) Create(ctx context.Context, material *models.Material) error {
	if material.ID == "" {
		material.ID = uuid.NewString()
	}
	if material.CreatedAt.IsZero() {
		material.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO materials (id, module_id, title, file_name, file_path, mime_type, size_bytes, uploaded_by, created_at)
VALUES (:id, :module_id, :title, :file_name, :file_path, :mime_type, :size_bytes, :uploaded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, material); err != nil {
		return fmt.Errorf("create material: %w", err)
	}
	return nil
}

// Delete removes a material record.
func (r *MaterialRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM materials WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	return nil
}
