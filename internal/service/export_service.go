package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/teacher-eval-api/internal/dto"
	"github.com/noah-isme/teacher-eval-api/internal/models"
	appErrors "github.com/noah-isme/teacher-eval-api/pkg/errors"
)

type exportTeacherSource interface {
	ListAll(ctx context.Context) ([]models.Teacher, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Teacher, error)
}

type exportEvaluationSource interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Evaluation, error)
	FindByID(ctx context.Context, id string) (*models.Evaluation, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Evaluation, error)
}

type documentRenderer interface {
	RenderSingleEvaluation(ctx context.Context, teacher models.Teacher, evaluation models.Evaluation) (*dto.File, error)
	RenderBatch(ctx context.Context, pairs []dto.EvaluationWithTeacher) (*dto.File, error)
}

type spreadsheetRenderer interface {
	ExportForTeacher(teacher models.Teacher, evaluations []models.Evaluation, format SpreadsheetFormat) (*dto.File, error)
	ExportForAllTeachers(groups []dto.TeacherEvaluations) (*dto.File, error)
}

// ExportServiceParams wires ExportService dependencies.
type ExportServiceParams struct {
	Teachers     exportTeacherSource
	Evaluations  exportEvaluationSource
	Documents    documentRenderer
	Spreadsheets spreadsheetRenderer
	Logger       *zap.Logger
}

// ExportService gathers teachers and evaluations and hands them to the renderers.
type ExportService struct {
	teachers     exportTeacherSource
	evaluations  exportEvaluationSource
	documents    documentRenderer
	spreadsheets spreadsheetRenderer
	logger       *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(params ExportServiceParams) *ExportService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		teachers:     params.Teachers,
		evaluations:  params.Evaluations,
		documents:    params.Documents,
		spreadsheets: params.Spreadsheets,
		logger:       logger,
	}
}

// ExportAll builds the all teachers workbook for the teachers matching filter.
// Teachers whose evaluations cannot be loaded are skipped.
func (s *ExportService) ExportAll(ctx context.Context, filter models.TeacherFilter) (*dto.ExportAllResult, error) {
	teachers, err := s.teachers.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	teachers = FilterTeachers(teachers, filter)
	if len(teachers) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "No se encontraron docentes con los filtros aplicados")
	}

	groups := make([]dto.TeacherEvaluations, 0, len(teachers))
	total := 0
	for _, teacher := range teachers {
		if err := ctx.Err(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export cancelled")
		}
		evaluations, err := s.evaluations.ListByTeacher(ctx, teacher.ID)
		if err != nil {
			s.logger.Warn("skipping teacher in export", zap.String("teacher_id", teacher.ID), zap.Error(err))
			continue
		}
		if len(evaluations) == 0 {
			continue
		}
		groups = append(groups, dto.TeacherEvaluations{Teacher: teacher, Evaluations: evaluations})
		total += len(evaluations)
	}
	if total == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "No se encontraron evaluaciones para exportar")
	}

	file, err := s.spreadsheets.ExportForAllTeachers(groups)
	if err != nil {
		return nil, err
	}
	s.logger.Info("exported evaluations", zap.Int("teachers", len(groups)), zap.Int("evaluations", total))
	return &dto.ExportAllResult{File: *file, TeacherCount: len(groups), EvaluationCount: total}, nil
}

// TeacherSpreadsheet exports every evaluation of one teacher.
func (s *ExportService) TeacherSpreadsheet(ctx context.Context, teacherID string, format SpreadsheetFormat) (*dto.File, error) {
	teacher, err := s.findTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	evaluations, err := s.evaluations.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}
	if len(evaluations) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "No hay evaluaciones para exportar")
	}
	return s.spreadsheets.ExportForTeacher(*teacher, evaluations, format)
}

// EvaluationDocument renders the Word report of one evaluation.
func (s *ExportService) EvaluationDocument(ctx context.Context, evaluationID string) (*dto.File, error) {
	evaluation, err := s.evaluations.FindByID(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Evaluación no encontrada")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}
	teacher, err := s.findTeacher(ctx, evaluation.TeacherID)
	if err != nil {
		return nil, err
	}
	return s.documents.RenderSingleEvaluation(ctx, *teacher, *evaluation)
}

// BatchReport renders the summary document for the given evaluations, in request order.
// Ids that do not resolve to an evaluation and teacher are left out.
func (s *ExportService) BatchReport(ctx context.Context, evaluationIDs []string) (*dto.File, error) {
	evaluations, err := s.evaluations.FindByIDs(ctx, evaluationIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluations")
	}
	byID := make(map[string]models.Evaluation, len(evaluations))
	teacherIDs := make([]string, 0, len(evaluations))
	seenTeacher := map[string]bool{}
	for _, evaluation := range evaluations {
		byID[evaluation.ID] = evaluation
		if !seenTeacher[evaluation.TeacherID] {
			seenTeacher[evaluation.TeacherID] = true
			teacherIDs = append(teacherIDs, evaluation.TeacherID)
		}
	}
	teachers, err := s.teachers.FindByIDs(ctx, teacherIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	teacherByID := make(map[string]models.Teacher, len(teachers))
	for _, teacher := range teachers {
		teacherByID[teacher.ID] = teacher
	}

	pairs := make([]dto.EvaluationWithTeacher, 0, len(evaluationIDs))
	used := map[string]bool{}
	for _, id := range evaluationIDs {
		evaluation, ok := byID[id]
		if !ok || used[id] {
			continue
		}
		teacher, ok := teacherByID[evaluation.TeacherID]
		if !ok {
			s.logger.Warn("evaluation without teacher left out of report", zap.String("evaluation_id", id))
			continue
		}
		used[id] = true
		pairs = append(pairs, dto.EvaluationWithTeacher{Evaluation: evaluation, Teacher: teacher})
	}
	if len(pairs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "No se encontraron evaluaciones para el reporte")
	}
	return s.documents.RenderBatch(ctx, pairs)
}

func (s *ExportService) findTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Docente no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}
