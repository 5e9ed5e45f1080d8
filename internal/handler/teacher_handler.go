package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teacher-eval-api/internal/dto"
	"github.com/noah-isme/teacher-eval-api/internal/models"
	"github.com/noah-isme/teacher-eval-api/internal/service"
	appErrors "github.com/noah-isme/teacher-eval-api/pkg/errors"
	"github.com/noah-isme/teacher-eval-api/pkg/response"
)

const maxTeacherPageSize = 100

type teacherService interface {
	ListPaginated(ctx context.Context, filter models.TeacherFilter) (*models.TeacherPage, error)
	Get(ctx context.Context, id string) (*models.Teacher, error)
	Create(ctx context.Context, input models.TeacherInput) (*models.Teacher, error)
	Update(ctx context.Context, id string, input models.TeacherInput) (*models.Teacher, error)
	Delete(ctx context.Context, id string) error
	Import(ctx context.Context, inputs []models.TeacherInput) (*dto.ImportResult, error)
}

type teacherEvaluations interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Evaluation, error)
	StatusForTeachers(ctx context.Context, teacherIDs []string) (map[string]models.EvaluationStatus, error)
}

type teacherExporter interface {
	TeacherSpreadsheet(ctx context.Context, teacherID string, format service.SpreadsheetFormat) (*dto.File, error)
}

// TeacherHandler wires teacher services to HTTP routes.
type TeacherHandler struct {
	teachers    teacherService
	evaluations teacherEvaluations
	exports     teacherExporter
}

// NewTeacherHandler constructs a new TeacherHandler.
func NewTeacherHandler(teachers teacherService, evaluations teacherEvaluations, exports teacherExporter) *TeacherHandler {
	return &TeacherHandler{
		teachers:    teachers,
		evaluations: evaluations,
		exports:     exports,
	}
}

// List godoc
// @Summary List teachers
// @Tags Teachers
// @Produce json
// @Param search query string false "Search by DNI, last names, first names or course"
// @Param curso query string false "Course"
// @Param turno query string false "Shift name, e.g. turno 1"
// @Param page query int false "Page number"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *TeacherHandler) List(c *gin.Context) {
	filter := teacherFilterFromQuery(c)
	filter.Page, filter.PageSize = 1, 10
	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.Query("limit")); err == nil && size > 0 {
		if size > maxTeacherPageSize {
			size = maxTeacherPageSize
		}
		filter.PageSize = size
	}

	page, err := h.teachers.ListPaginated(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page.Teachers, &models.Pagination{
		Page:            page.CurrentPage,
		PageSize:        filter.PageSize,
		TotalCount:      page.TotalCount,
		HasNextPage:     page.HasNextPage,
		HasPreviousPage: page.HasPreviousPage,
	})
}

// Status godoc
// @Summary Evaluation status per teacher
// @Tags Teachers
// @Produce json
// @Param ids query string true "Comma separated teacher IDs"
// @Success 200 {object} response.Envelope
// @Router /teachers/status [get]
func (h *TeacherHandler) Status(c *gin.Context) {
	ids := splitIDs(c.Query("ids"))
	if len(ids) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "ids is required"))
		return
	}
	status, err := h.evaluations.StatusForTeachers(c.Request.Context(), ids)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Get godoc
// @Summary Get teacher detail
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [get]
func (h *TeacherHandler) Get(c *gin.Context) {
	teacher, err := h.teachers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Create godoc
// @Summary Create teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param payload body models.TeacherInput true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Router /teachers [post]
func (h *TeacherHandler) Create(c *gin.Context) {
	var req models.TeacherInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}
	teacher, err := h.teachers.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher, response.Message("Docente registrado correctamente"))
}

// Import godoc
// @Summary Bulk import teachers
// @Tags Teachers
// @Accept json
// @Produce json
// @Param payload body []models.TeacherInput true "Teachers"
// @Success 200 {object} response.Envelope
// @Router /teachers/import [post]
func (h *TeacherHandler) Import(c *gin.Context) {
	var req []models.TeacherInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid import payload"))
		return
	}
	result, err := h.teachers.Import(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, response.Message(result.Message()))
}

// Update godoc
// @Summary Update teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body models.TeacherInput true "Teacher payload"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [put]
func (h *TeacherHandler) Update(c *gin.Context) {
	var req models.TeacherInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}
	teacher, err := h.teachers.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil, response.Message("Docente actualizado correctamente"))
}

// Delete godoc
// @Summary Delete teacher
// @Tags Teachers
// @Param id path string true "Teacher ID"
// @Success 204
// @Router /teachers/{id} [delete]
func (h *TeacherHandler) Delete(c *gin.Context) {
	if err := h.teachers.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListEvaluations godoc
// @Summary List a teacher's evaluations
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/evaluations [get]
func (h *TeacherHandler) ListEvaluations(c *gin.Context) {
	evaluations, err := h.evaluations.ListByTeacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluations, nil)
}

// ExportEvaluations godoc
// @Summary Export a teacher's evaluations
// @Tags Teachers
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Teacher ID"
// @Param format query string false "xlsx (default), csv or pdf"
// @Success 200 {file} file
// @Router /teachers/{id}/evaluations/export [get]
func (h *TeacherHandler) ExportEvaluations(c *gin.Context) {
	format, err := service.ParseSpreadsheetFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exports.TeacherSpreadsheet(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.MimeType, file.Data)
}

func teacherFilterFromQuery(c *gin.Context) models.TeacherFilter {
	return models.TeacherFilter{
		Course: strings.TrimSpace(c.Query("curso")),
		Shift:  strings.TrimSpace(c.Query("turno")),
		Search: strings.TrimSpace(c.Query("search")),
	}
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
