package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/univlab/campus-api/internal/models"
)

// ModuleRepository handles persistence of teaching modules.
type ModuleRepository struct {
	db *sqlx.DB
}

// NewModuleRepository constructs the repository.
func NewModuleRepository(db *sqlx.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// FindByID returns a module by identifier.
func (r *ModuleRepository) FindByID(ctx context.Context, id string) (*models.Module, error) {
	const query = `SELECT id, code, name, semester, coefficient, level, professor_id, created_at, updated_at FROM modules WHERE id = $1`
	var module models.Module
	if err := r.db.GetContext(ctx, &module, query, id); err != nil {
		return nil, err
	}
	return &module, nil
}

// FindByCode returns a module by its unique code.
func (r *ModuleRepository) FindByCode(ctx context.Context, code string) (*models.Module, error) {
	const query = `SELECT id, code, name, semester, coefficient, level, professor_id, created_at, updated_at FROM modules WHERE code = $1`
	var module models.Module
	if err := r.db.GetContext(ctx, &module, query, code); err != nil {
		return nil, err
	}
	return &module, nil
}

// List returns modules matching the filter with a total count.
func (r *ModuleRepository) List(ctx context.Context, filter models.ModuleFilter) ([]models.Module, int, error) {
	base := `FROM modules WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(code) LIKE $%d OR LOWER(name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Level != "" {
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)+1))
		args = append(args, filter.Level)
	}
	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.ProfessorID != "" {
		conditions = append(conditions, fmt.Sprintf("professor_id = $%d", len(args)+1))
		args = append(args, filter.ProfessorID)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT id, code, name, semester, coefficient, level, professor_id, created_at, updated_at %s ORDER BY code ASC LIMIT %d OFFSET %d", base, size, offset)
	var modules []models.Module
	if err := r.db.SelectContext(ctx, &modules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list modules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count modules: %w", err)
	}
	return modules, total, nil
}

// Create inserts a new module.
func (r *ModuleRepository) Create(ctx context.Context, module *models.Module) error {
	if module.ID == "" {
		module.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if module.CreatedAt.IsZero() {
		module.CreatedAt = now
	}
	module.UpdatedAt = now
	const query = `INSERT INTO modules (id, code, name, semester, coefficient, level, professor_id, created_at, updated_at)
VALUES (:id, :code, :name, :semester, :coefficient, :level, :professor_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, module); err != nil {
		return fmt.Errorf("create module: %w", err)
	}
	return nil
}

// Update modifies mutable module fields.
func (r *ModuleRepository) Update(ctx context.Context, module *models.Module) error {
	module.UpdatedAt = time.Now().UTC()
	const query = `UPDATE modules SET name = :name, semester = :semester, coefficient = :coefficient, level = :level, professor_id = :professor_id, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, module)
	if err != nil {
		return fmt.Errorf("update module: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a module.
func (r *ModuleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM modules WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete module: %w", err)
	}
	return nil
}
