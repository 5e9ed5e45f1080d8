package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teacher-eval-api/internal/dto"
	"github.com/noah-isme/teacher-eval-api/internal/models"
	"github.com/noah-isme/teacher-eval-api/pkg/response"
)

const (
	headerExportTeachers    = "X-Export-Teacher-Count"
	headerExportEvaluations = "X-Export-Evaluation-Count"
	headerExportMessage     = "X-Export-Message"
)

type bulkExporter interface {
	ExportAll(ctx context.Context, filter models.TeacherFilter) (*dto.ExportAllResult, error)
}

// ExportHandler serves the all-teacher workbook.
type ExportHandler struct {
	exports bulkExporter
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(exports bulkExporter) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Evaluations godoc
// @Summary Export every evaluation of the filtered teachers
// @Description One sheet, rows numbered across teachers. Counts are returned in X-Export-* headers.
// @Tags Exports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param search query string false "Search by DNI, last names, first names or course"
// @Param curso query string false "Course"
// @Param turno query string false "Shift name"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /exports/evaluations [get]
func (h *ExportHandler) Evaluations(c *gin.Context) {
	result, err := h.exports.ExportAll(c.Request.Context(), teacherFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header(headerExportTeachers, strconv.Itoa(result.TeacherCount))
	c.Header(headerExportEvaluations, strconv.Itoa(result.EvaluationCount))
	c.Header(headerExportMessage, asciiHeader(result.Message()))
	response.File(c, result.File.Filename, result.File.MimeType, result.File.Data)
}

// asciiHeader keeps header values within the visible ASCII range.
func asciiHeader(value string) string {
	out := make([]rune, 0, len(value))
	for _, r := range value {
		if r >= 0x20 && r < 0x7f {
			out = append(out, r)
		}
	}
	return string(out)
}
