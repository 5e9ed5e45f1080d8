package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-eval-api/internal/dto"
	"github.com/noah-isme/teacher-eval-api/internal/models"
	appErrors "github.com/noah-isme/teacher-eval-api/pkg/errors"
)

const defaultTeacherPageSize = 10

type teacherRepository interface {
	ListAll(ctx context.Context) ([]models.Teacher, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	ExistsByDNI(ctx context.Context, dni, excludeID string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, id string) error
}

// statsInvalidator drops cached dashboard figures after writes.
type statsInvalidator interface {
	Invalidate(ctx context.Context)
}

// TeacherService orchestrates teacher operations.
type TeacherService struct {
	repo      teacherRepository
	stats     statsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(repo teacherRepository, stats statsInvalidator, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, stats: stats, validator: validate, logger: logger}
}

// ListAll returns every teacher ordered by last names.
func (s *TeacherService) ListAll(ctx context.Context) ([]models.Teacher, error) {
	teachers, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, nil
}

// ListPaginated filters the full teacher list in memory and returns one page.
func (s *TeacherService) ListPaginated(ctx context.Context, filter models.TeacherFilter) (*models.TeacherPage, error) {
	teachers, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	filtered := FilterTeachers(teachers, filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = defaultTeacherPageSize
	}
	total := len(filtered)

	// Division keeps huge page numbers from overflowing the offset.
	items := []models.Teacher{}
	hasNext := false
	if total > 0 && page-1 <= (total-1)/size {
		start := (page - 1) * size
		end := total
		if size < total-start {
			end = start + size
		}
		items = filtered[start:end]
		hasNext = end < total
	}
	return &models.TeacherPage{
		Teachers:        items,
		HasNextPage:     hasNext,
		HasPreviousPage: page > 1,
		TotalCount:      total,
		CurrentPage:     page,
	}, nil
}

// FilterTeachers applies course, search and shift filters preserving order.
func FilterTeachers(teachers []models.Teacher, filter models.TeacherFilter) []models.Teacher {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]models.Teacher, 0, len(teachers))
	for _, t := range teachers {
		if filter.Course != "" && string(t.Course) != filter.Course {
			continue
		}
		if search != "" && !matchesSearch(t, search) {
			continue
		}
		if filter.Shift != "" && t.ShiftHours[filter.Shift] <= 0 {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesSearch(t models.Teacher, needle string) bool {
	for _, field := range []string{t.DNI, t.LastNames, t.FirstNames, string(t.Course)} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Docente no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a new teacher after checking DNI uniqueness.
func (s *TeacherService) Create(ctx context.Context, input models.TeacherInput) (*models.Teacher, error) {
	input = normalizeTeacherInput(input)
	if err := s.validator.Struct(input); err != nil {
		return nil, validationError(teacherValidationMessages(err))
	}
	if err := s.ensureUniqueDNI(ctx, input.DNI, ""); err != nil {
		return nil, err
	}

	teacher := &models.Teacher{}
	applyTeacherInput(teacher, input)
	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	s.invalidateStats(ctx)
	s.logger.Info("teacher created", zap.String("teacher_id", teacher.ID))
	return teacher, nil
}

// Update replaces the editable fields of an existing teacher.
func (s *TeacherService) Update(ctx context.Context, id string, input models.TeacherInput) (*models.Teacher, error) {
	input = normalizeTeacherInput(input)
	if err := s.validator.Struct(input); err != nil {
		return nil, validationError(teacherValidationMessages(err))
	}

	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUniqueDNI(ctx, input.DNI, id); err != nil {
		return nil, err
	}

	applyTeacherInput(teacher, input)
	if err := s.repo.Update(ctx, teacher); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Docente no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	s.invalidateStats(ctx)
	return teacher, nil
}

// Delete removes a teacher. Their evaluations are kept.
func (s *TeacherService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Docente no encontrado")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teacher")
	}
	s.invalidateStats(ctx)
	return nil
}

// Import validates the whole batch and then creates each teacher. Duplicate
// DNIs and individual write failures are skipped and reported.
func (s *TeacherService) Import(ctx context.Context, inputs []models.TeacherInput) (*dto.ImportResult, error) {
	if len(inputs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "No hay datos válidos para importar")
	}

	var messages []string
	for i := range inputs {
		inputs[i] = normalizeTeacherInput(inputs[i])
		if err := s.validator.Struct(inputs[i]); err != nil {
			for _, msg := range teacherValidationMessages(err) {
				messages = append(messages, fmt.Sprintf("Docente #%d: %s", i+1, msg))
			}
		}
	}
	if len(messages) > 0 {
		return nil, validationError(messages)
	}

	result := &dto.ImportResult{Total: len(inputs), Errors: []string{}}
	seen := make(map[string]bool, len(inputs))
	for _, input := range inputs {
		exists := seen[input.DNI]
		if !exists {
			var err error
			exists, err = s.repo.ExistsByDNI(ctx, input.DNI, "")
			if err != nil {
				s.logger.Warn("import dni check failed", zap.String("dni", input.DNI), zap.Error(err))
				result.Errors = append(result.Errors, fmt.Sprintf("Error al importar docente con DNI %s", input.DNI))
				continue
			}
		}
		if exists {
			result.Errors = append(result.Errors, fmt.Sprintf("El DNI %s ya está registrado. Se omitirá este registro.", input.DNI))
			continue
		}

		teacher := &models.Teacher{}
		applyTeacherInput(teacher, input)
		if err := s.repo.Create(ctx, teacher); err != nil {
			s.logger.Warn("import teacher failed", zap.String("dni", input.DNI), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("Error al importar docente con DNI %s", input.DNI))
			continue
		}
		seen[input.DNI] = true
		result.Imported++
	}

	if result.Imported > 0 {
		s.invalidateStats(ctx)
	}
	s.logger.Info("teachers imported", zap.Int("imported", result.Imported), zap.Int("total", result.Total))
	return result, nil
}

func (s *TeacherService) ensureUniqueDNI(ctx context.Context, dni, excludeID string) error {
	exists, err := s.repo.ExistsByDNI(ctx, dni, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate dni")
	}
	if !exists {
		return nil
	}
	if excludeID != "" {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("El DNI %s ya está registrado para otro docente", dni))
	}
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("El DNI %s ya está registrado", dni))
}

func (s *TeacherService) invalidateStats(ctx context.Context) {
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
}

func normalizeTeacherInput(in models.TeacherInput) models.TeacherInput {
	in.DNI = strings.TrimSpace(in.DNI)
	in.LastNames = strings.TrimSpace(in.LastNames)
	in.FirstNames = strings.TrimSpace(in.FirstNames)
	in.Phone = strings.TrimSpace(in.Phone)
	in.PersonalEmail = strings.TrimSpace(in.PersonalEmail)
	in.InstitutionalEmail = strings.TrimSpace(in.InstitutionalEmail)
	in.Course = models.Course(strings.TrimSpace(string(in.Course)))
	return in
}

func applyTeacherInput(t *models.Teacher, in models.TeacherInput) {
	t.DNI = in.DNI
	t.LastNames = in.LastNames
	t.FirstNames = in.FirstNames
	t.Phone = in.Phone
	t.PersonalEmail = in.PersonalEmail
	t.InstitutionalEmail = in.InstitutionalEmail
	t.Course = in.Course
	t.WorkCondition = in.WorkCondition
	t.ShiftHours = in.ShiftHours
	t.TotalHours = in.ShiftHours.Total()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
