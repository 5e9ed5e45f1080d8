package dto

import (
	"fmt"
	"time"

	"github.com/noah-isme/teacher-eval-api/internal/models"
)

// TeacherEvaluations groups every exported evaluation of one teacher.
type TeacherEvaluations struct {
	Teacher     models.Teacher
	Evaluations []models.Evaluation
}

// ImportResult summarises a bulk teacher import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Total    int      `json:"total"`
	Errors   []string `json:"errors"`
}

// Message renders the user facing outcome.
func (r ImportResult) Message() string {
	if r.Imported == 0 {
		return fmt.Sprintf("No se importó ningún docente (0 de %d)", r.Total)
	}
	return fmt.Sprintf("Se importaron %d docentes exitosamente", r.Imported)
}

// File is a generated download.
type File struct {
	Filename string
	MimeType string
	Data     []byte
}

// ExportAllResult carries the workbook plus the counts shown to the user.
type ExportAllResult struct {
	File            File
	TeacherCount    int
	EvaluationCount int
}

// Message renders the user facing outcome.
func (r ExportAllResult) Message() string {
	return fmt.Sprintf("Se exportaron %d evaluaciones de %d docentes", r.EvaluationCount, r.TeacherCount)
}

// EvidenceLink is a signed, expiring download URL for an evidence image.
type EvidenceLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// BatchReportRequest selects the evaluations of a batch report.
type BatchReportRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}
