package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/teacher-eval-api/internal/models"
)

// evaluationSummaryColumns leaves out the base64 evidence copy, which only
// single-evaluation documents need.
const evaluationSummaryColumns = `id, teacher_id, evaluator_id, evaluator_name, date, time, reflective_dialogue_date, reflective_dialogue_time,
	evidence_image_key, performance1, performance2, performance3, performance4, performance5, performance6,
	observations, strengths, improvement_areas, commitments, created_at, updated_at`

const evaluationColumns = evaluationSummaryColumns + `, evidence_image_base64`

// EvaluationRepository manages persistence for teacher evaluations.
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository constructs an EvaluationRepository.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// ListAll returns every evaluation, newest date first.
func (r *EvaluationRepository) ListAll(ctx context.Context) ([]models.Evaluation, error) {
	query := "SELECT " + evaluationSummaryColumns + " FROM evaluations ORDER BY date DESC"
	var evaluations []models.Evaluation
	if err := r.db.SelectContext(ctx, &evaluations, query); err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return evaluations, nil
}

// ListByTeacher returns a teacher's evaluations, newest date first.
func (r *EvaluationRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Evaluation, error) {
	query := "SELECT " + evaluationSummaryColumns + " FROM evaluations WHERE teacher_id = $1 ORDER BY date DESC"
	var evaluations []models.Evaluation
	if err := r.db.SelectContext(ctx, &evaluations, query, teacherID); err != nil {
		return nil, fmt.Errorf("list evaluations by teacher: %w", err)
	}
	return evaluations, nil
}

// ListDatesByTeachers returns teacher_id and date for every evaluation of the given teachers.
func (r *EvaluationRepository) ListDatesByTeachers(ctx context.Context, teacherIDs []string) ([]models.Evaluation, error) {
	if len(teacherIDs) == 0 {
		return []models.Evaluation{}, nil
	}
	const query = `SELECT teacher_id, date FROM evaluations WHERE teacher_id = ANY($1)`
	var evaluations []models.Evaluation
	if err := r.db.SelectContext(ctx, &evaluations, query, pq.Array(teacherIDs)); err != nil {
		return nil, fmt.Errorf("list evaluation dates: %w", err)
	}
	return evaluations, nil
}

// FindByID fetches a full evaluation, including the evidence copy.
func (r *EvaluationRepository) FindByID(ctx context.Context, id string) (*models.Evaluation, error) {
	query := "SELECT " + evaluationColumns + " FROM evaluations WHERE id = $1"
	var evaluation models.Evaluation
	if err := r.db.GetContext(ctx, &evaluation, query, id); err != nil {
		return nil, err
	}
	return &evaluation, nil
}

// FindByIDs fetches evaluations without the evidence copy, newest date first.
func (r *EvaluationRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Evaluation, error) {
	if len(ids) == 0 {
		return []models.Evaluation{}, nil
	}
	query := "SELECT " + evaluationSummaryColumns + " FROM evaluations WHERE id = ANY($1) ORDER BY date DESC"
	var evaluations []models.Evaluation
	if err := r.db.SelectContext(ctx, &evaluations, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find evaluations by ids: %w", err)
	}
	return evaluations, nil
}

// Create inserts a new evaluation record.
func (r *EvaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	if evaluation.ID == "" {
		evaluation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if evaluation.CreatedAt.IsZero() {
		evaluation.CreatedAt = now
	}
	evaluation.UpdatedAt = now

	const query = `INSERT INTO evaluations (id, teacher_id, evaluator_id, evaluator_name, date, time, reflective_dialogue_date, reflective_dialogue_time,
		evidence_image_key, evidence_image_base64, performance1, performance2, performance3, performance4, performance5, performance6,
		observations, strengths, improvement_areas, commitments, created_at, updated_at)
		VALUES (:id, :teacher_id, :evaluator_id, :evaluator_name, :date, :time, :reflective_dialogue_date, :reflective_dialogue_time,
		:evidence_image_key, :evidence_image_base64, :performance1, :performance2, :performance3, :performance4, :performance5, :performance6,
		:observations, :strengths, :improvement_areas, :commitments, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, evaluation); err != nil {
		return fmt.Errorf("create evaluation: %w", err)
	}
	return nil
}

// Update replaces every mutable column of an existing evaluation.
func (r *EvaluationRepository) Update(ctx context.Context, evaluation *models.Evaluation) error {
	evaluation.UpdatedAt = time.Now().UTC()
	const query = `UPDATE evaluations SET teacher_id = :teacher_id, evaluator_id = :evaluator_id, evaluator_name = :evaluator_name,
		date = :date, time = :time, reflective_dialogue_date = :reflective_dialogue_date, reflective_dialogue_time = :reflective_dialogue_time,
		evidence_image_key = :evidence_image_key, evidence_image_base64 = :evidence_image_base64,
		performance1 = :performance1, performance2 = :performance2, performance3 = :performance3,
		performance4 = :performance4, performance5 = :performance5, performance6 = :performance6,
		observations = :observations, strengths = :strengths, improvement_areas = :improvement_areas,
		commitments = :commitments, updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, evaluation)
	if err != nil {
		return fmt.Errorf("update evaluation: %w", err)
	}
	return requireAffected(res)
}

// Delete removes an evaluation.
func (r *EvaluationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM evaluations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete evaluation: %w", err)
	}
	return requireAffected(res)
}
