package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teacher-eval-api/internal/dto"
	"github.com/noah-isme/teacher-eval-api/internal/models"
	"github.com/noah-isme/teacher-eval-api/internal/rubric"
	appErrors "github.com/noah-isme/teacher-eval-api/pkg/errors"
	"github.com/noah-isme/teacher-eval-api/pkg/export"
)

// SpreadsheetFormat selects the rendering of an evaluation export.
type SpreadsheetFormat string

const (
	SpreadsheetXLSX SpreadsheetFormat = "xlsx"
	SpreadsheetCSV  SpreadsheetFormat = "csv"
	SpreadsheetPDF  SpreadsheetFormat = "pdf"
)

// ParseSpreadsheetFormat maps a query value to a format, defaulting to xlsx.
func ParseSpreadsheetFormat(raw string) (SpreadsheetFormat, error) {
	switch SpreadsheetFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SpreadsheetXLSX:
		return SpreadsheetXLSX, nil
	case SpreadsheetCSV:
		return SpreadsheetCSV, nil
	case SpreadsheetPDF:
		return SpreadsheetPDF, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Formato de exportación no soportado: %s", raw))
}

// AllEvaluationsSheet is the single sheet of the all teachers workbook.
const AllEvaluationsSheet = "Todas_las_Evaluaciones"

const (
	colNumber       = "N°"
	colLastNames    = "Apellidos"
	colFirstNames   = "Nombres"
	colCourse       = "Curso"
	colDNI          = "Dni"
	colPhone        = "Telefono"
	colEmail        = "Correo"
	colInstEmail    = "CorreoInstitucional"
	colShift1       = "Turno1"
	colShift2       = "Turno2"
	colShift3       = "Turno3"
	colTotalHours   = "TotalHoras"
	colDate         = "Fecha de Evaluación"
	colEvaluator    = "Evaluador"
	colDialogue     = "Fecha Diálogo Reflexivo"
	colTotalScore   = "Puntaje Total"
	colMaxScore     = "Puntaje Máximo"
	colObservations = "Observaciones"
	colStrengths    = "Fortalezas"
	colImprovement  = "Areas de Mejora"
	colCommitments  = "Compromisos"
)

type column struct {
	header  string
	width   float64
	numeric bool
}

var evaluationColumns = buildEvaluationColumns()

func buildEvaluationColumns() []column {
	cols := []column{
		{colNumber, 5, true},
		{colLastNames, 20, false},
		{colFirstNames, 20, false},
		{colCourse, 25, false},
		{colDNI, 15, false},
		{colPhone, 15, false},
		{colEmail, 25, false},
		{colInstEmail, 25, false},
		{colShift1, 10, true},
		{colShift2, 10, true},
		{colShift3, 10, true},
		{colTotalHours, 12, true},
		{colDate, 15, false},
		{colEvaluator, 25, false},
		{colDialogue, 18, false},
	}
	for k := 1; k <= 6; k++ {
		cols = append(cols,
			column{performanceHeader(k), 12, false},
			column{performanceValueHeader(k), 8, true},
		)
	}
	return append(cols,
		column{colTotalScore, 12, true},
		column{colMaxScore, 12, true},
		column{colObservations, 30, false},
		column{colStrengths, 30, false},
		column{colImprovement, 30, false},
		column{colCommitments, 30, false},
	)
}

func performanceHeader(k int) string      { return fmt.Sprintf("Desempeño %d", k) }
func performanceValueHeader(k int) string { return fmt.Sprintf("Desempeño %d (Valor)", k) }

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, subtitles ...string) ([]byte, error)
}

// SpreadsheetService turns evaluations into tabular exports.
type SpreadsheetService struct {
	xlsx    xlsxRenderer
	csv     csvRenderer
	pdf     pdfRenderer
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewSpreadsheetService constructs a SpreadsheetService. Nil renderers fall back to the pkg/export defaults.
func NewSpreadsheetService(xlsx xlsxRenderer, csv csvRenderer, pdf pdfRenderer, metrics *MetricsService, logger *zap.Logger) *SpreadsheetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		exporter := export.NewPDFExporter()
		exporter.Landscape = true
		pdf = exporter
	}
	return &SpreadsheetService{xlsx: xlsx, csv: csv, pdf: pdf, metrics: metrics, logger: logger, now: time.Now}
}

// ExportForTeacher renders every evaluation of one teacher.
func (s *SpreadsheetService) ExportForTeacher(teacher models.Teacher, evaluations []models.Evaluation, format SpreadsheetFormat) (*dto.File, error) {
	start := time.Now()
	dataset := newEvaluationDataset()
	for i, evaluation := range evaluations {
		dataset.Rows = append(dataset.Rows, evaluationRow(i+1, teacher, evaluation))
	}

	base := fmt.Sprintf("Evaluaciones_%s_%s_%s", teacher.LastNames, teacher.FirstNames, s.now().UTC().Format("2006-01-02"))
	var (
		file *dto.File
		err  error
	)
	switch format {
	case SpreadsheetCSV:
		file, err = s.renderCSV(dataset, base)
	case SpreadsheetPDF:
		file, err = s.renderPDF(dataset, base, teacher)
	default:
		format = SpreadsheetXLSX
		file, err = s.renderXLSX(dataset, base, teacher.LastNames+"_"+teacher.FirstNames)
	}
	s.record(string(format), start, err)
	return file, err
}

// ExportForAllTeachers renders every group into one sheet with continuous numbering.
func (s *SpreadsheetService) ExportForAllTeachers(groups []dto.TeacherEvaluations) (*dto.File, error) {
	start := time.Now()
	dataset := newEvaluationDataset()
	n := 0
	for _, group := range groups {
		for _, evaluation := range group.Evaluations {
			n++
			dataset.Rows = append(dataset.Rows, evaluationRow(n, group.Teacher, evaluation))
		}
	}
	base := fmt.Sprintf("%s_%s", AllEvaluationsSheet, s.now().UTC().Format("2006-01-02"))
	file, err := s.renderXLSX(dataset, base, AllEvaluationsSheet)
	s.record(string(SpreadsheetXLSX), start, err)
	return file, err
}

func (s *SpreadsheetService) renderXLSX(dataset export.Dataset, base, sheet string) (*dto.File, error) {
	out, err := s.xlsx.Render(dataset, export.SheetName(sheet))
	if err != nil {
		return nil, s.exportError(err, "xlsx")
	}
	return &dto.File{Filename: base + ".xlsx", MimeType: export.MimeXLSX, Data: out}, nil
}

func (s *SpreadsheetService) renderCSV(dataset export.Dataset, base string) (*dto.File, error) {
	out, err := s.csv.Render(dataset)
	if err != nil {
		return nil, s.exportError(err, "csv")
	}
	return &dto.File{Filename: base + ".csv", MimeType: export.MimeCSV, Data: out}, nil
}

func (s *SpreadsheetService) renderPDF(dataset export.Dataset, base string, teacher models.Teacher) (*dto.File, error) {
	summary := dataset.Subset(colNumber, colDate, colEvaluator, colDialogue,
		performanceHeader(1), performanceHeader(2), performanceHeader(3),
		performanceHeader(4), performanceHeader(5), performanceHeader(6),
		colTotalScore)
	summary.Widths = dataset.Widths
	subtitle := fmt.Sprintf("%s - %s - DNI %s", teacher.FullName(), strings.ToUpper(string(teacher.Course)), teacher.DNI)
	out, err := s.pdf.Render(summary, "Resumen de evaluaciones", subtitle)
	if err != nil {
		return nil, s.exportError(err, "pdf")
	}
	return &dto.File{Filename: base + ".pdf", MimeType: export.MimePDF, Data: out}, nil
}

func (s *SpreadsheetService) exportError(err error, format string) error {
	s.logger.Error("failed to render evaluation export", zap.String("format", format), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrExport.Code, appErrors.ErrExport.Status, "No se pudo exportar las evaluaciones")
}

func (s *SpreadsheetService) record(format string, start time.Time, err error) {
	outcome := ExportOutcomeSuccess
	if err != nil {
		outcome = ExportOutcomeFailure
	}
	s.metrics.RecordExport("spreadsheet", format, outcome, time.Since(start))
}

func newEvaluationDataset() export.Dataset {
	dataset := export.Dataset{
		Headers: make([]string, len(evaluationColumns)),
		Widths:  make(map[string]float64, len(evaluationColumns)),
		Numeric: map[string]bool{},
	}
	for i, col := range evaluationColumns {
		dataset.Headers[i] = col.header
		dataset.Widths[col.header] = col.width
		if col.numeric {
			dataset.Numeric[col.header] = true
		}
	}
	return dataset
}

func evaluationRow(n int, teacher models.Teacher, evaluation models.Evaluation) map[string]string {
	dialogue := "No realizado"
	if evaluation.ReflectiveDialogueDate != nil && *evaluation.ReflectiveDialogueDate != "" {
		dialogue = shortISODate(*evaluation.ReflectiveDialogueDate)
	}
	row := map[string]string{
		colNumber:       strconv.Itoa(n),
		colLastNames:    teacher.LastNames,
		colFirstNames:   teacher.FirstNames,
		colCourse:       strings.ToUpper(string(teacher.Course)),
		colDNI:          teacher.DNI,
		colPhone:        teacher.Phone,
		colEmail:        teacher.PersonalEmail,
		colInstEmail:    teacher.InstitutionalEmail,
		colShift1:       strconv.Itoa(teacher.ShiftHours["turno 1"]),
		colShift2:       strconv.Itoa(teacher.ShiftHours["turno 2"]),
		colShift3:       strconv.Itoa(teacher.ShiftHours["turno 3"]),
		colTotalHours:   strconv.Itoa(teacher.TotalHours),
		colDate:         shortISODate(evaluation.Date),
		colEvaluator:    evaluation.EvaluatorName,
		colDialogue:     dialogue,
		colTotalScore:   strconv.Itoa(evaluation.TotalScore()),
		colMaxScore:     strconv.Itoa(rubric.MaxScore),
		colObservations: evaluation.Observations,
		colStrengths:    evaluation.Strengths,
		colImprovement:  evaluation.ImprovementAreas,
		colCommitments:  evaluation.Commitments,
	}
	for i, level := range evaluation.Levels() {
		row[performanceHeader(i+1)] = string(level)
		row[performanceValueHeader(i+1)] = strconv.Itoa(rubric.LevelValue(level))
	}
	return row
}
