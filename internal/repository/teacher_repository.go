package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/teacher-eval-api/internal/models"
)

const teacherColumns = `id, dni, last_names, first_names, phone, personal_email, institutional_email, course, work_condition, shift_hours, total_hours, created_at, updated_at`

// TeacherRepository manages persistence for teachers.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// ListAll returns every teacher ordered by last names.
func (r *TeacherRepository) ListAll(ctx context.Context) ([]models.Teacher, error) {
	query := "SELECT " + teacherColumns + " FROM teachers ORDER BY last_names ASC"
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// FindByID fetches a teacher by ID.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := "SELECT " + teacherColumns + " FROM teachers WHERE id = $1"
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// FindByIDs fetches the teachers with the given ids. Unknown ids are skipped.
func (r *TeacherRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Teacher, error) {
	if len(ids) == 0 {
		return []models.Teacher{}, nil
	}
	query := "SELECT " + teacherColumns + " FROM teachers WHERE id = ANY($1)"
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find teachers by ids: %w", err)
	}
	return teachers, nil
}

// ExistsByDNI checks if another teacher uses the same DNI.
func (r *TeacherRepository) ExistsByDNI(ctx context.Context, dni string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM teachers WHERE dni = $1"
	args := []interface{}{dni}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher dni: %w", err)
	}
	return true, nil
}

// Create inserts a new teacher record.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = now
	}
	teacher.UpdatedAt = now

	const query = `INSERT INTO teachers (id, dni, last_names, first_names, phone, personal_email, institutional_email, course, work_condition, shift_hours, total_hours, created_at, updated_at)
		VALUES (:id, :dni, :last_names, :first_names, :phone, :personal_email, :institutional_email, :course, :work_condition, :shift_hours, :total_hours, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Update replaces every mutable column of an existing teacher.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET dni = :dni, last_names = :last_names, first_names = :first_names, phone = :phone,
		personal_email = :personal_email, institutional_email = :institutional_email, course = :course,
		work_condition = :work_condition, shift_hours = :shift_hours, total_hours = :total_hours, updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, teacher)
	if err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a teacher. Evaluations are left untouched.
func (r *TeacherRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	return requireAffected(res)
}

// requireAffected maps a write that touched no rows to sql.ErrNoRows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
