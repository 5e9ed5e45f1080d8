package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teacher-eval-api/internal/dto"
	"github.com/noah-isme/teacher-eval-api/internal/models"
	"github.com/noah-isme/teacher-eval-api/internal/rubric"
	"github.com/noah-isme/teacher-eval-api/pkg/docx"
	appErrors "github.com/noah-isme/teacher-eval-api/pkg/errors"
	"github.com/noah-isme/teacher-eval-api/pkg/imagefit"
)

const (
	// SingleEvaluationTemplate is the template for one evaluation with its evidence image.
	SingleEvaluationTemplate = "evaluation-template.docx"
	// BatchReportTemplate is the template for the multi evaluation summary.
	BatchReportTemplate = "multiple-evaluations-template.docx"

	documentFailureMessage = "No se pudo generar el documento. Por favor, inténtelo de nuevo."
)

var whitespaceRun = regexp.MustCompile(`\s+`)

type templateSource interface {
	Read(name string) ([]byte, error)
}

// Institution identifies the school printed on generated documents.
type Institution struct {
	Name     string
	Address  string
	Location *time.Location
}

// DocumentServiceParams wires DocumentService dependencies.
type DocumentServiceParams struct {
	Templates   templateSource
	Institution Institution
	Metrics     *MetricsService
	Logger      *zap.Logger
}

// DocumentService fills Word templates with evaluation data.
type DocumentService struct {
	templates   templateSource
	institution Institution
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(params DocumentServiceParams) *DocumentService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	institution := params.Institution
	if institution.Location == nil {
		institution.Location = time.UTC
	}
	return &DocumentService{
		templates:   params.Templates,
		institution: institution,
		metrics:     params.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// RenderSingleEvaluation renders the full report of one evaluation, embedding its evidence image.
func (s *DocumentService) RenderSingleEvaluation(ctx context.Context, teacher models.Teacher, evaluation models.Evaluation) (*dto.File, error) {
	start := time.Now()
	file, err := s.render(ctx, SingleEvaluationTemplate, s.singleData(teacher, evaluation), embedEvidence)
	s.record("document", start, err)
	if err != nil {
		return nil, err
	}
	file.Filename = fmt.Sprintf("Evaluacion_%s_%s_%s.docx",
		whitespaceRun.ReplaceAllString(teacher.LastNames, "_"),
		whitespaceRun.ReplaceAllString(teacher.FirstNames, "_"),
		strings.ReplaceAll(evaluation.Date, "-", ""),
	)
	return file, nil
}

// RenderBatch renders a summary table of several evaluations without images.
func (s *DocumentService) RenderBatch(ctx context.Context, pairs []dto.EvaluationWithTeacher) (*dto.File, error) {
	start := time.Now()
	file, err := s.render(ctx, BatchReportTemplate, s.batchData(pairs), nil)
	s.record("report", start, err)
	if err != nil {
		return nil, err
	}
	file.Filename = fmt.Sprintf("Reporte_Evaluaciones_%s.docx", s.now().UTC().Format("20060102"))
	return file, nil
}

func (s *DocumentService) render(ctx context.Context, name string, data docx.Data, images docx.ImageFunc) (*dto.File, error) {
	if s.templates == nil {
		return nil, appErrors.Clone(appErrors.ErrTemplate, documentFailureMessage)
	}
	tpl, err := s.templates.Read(name)
	if err != nil {
		s.logger.Error("failed to load document template", zap.String("template", name), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrTemplate.Code, appErrors.ErrTemplate.Status, documentFailureMessage)
	}
	out, err := docx.Render(tpl, data, images)
	if err != nil {
		s.logger.Error("failed to render document", zap.String("template", name), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrExport.Code, appErrors.ErrExport.Status, documentFailureMessage)
	}
	return &dto.File{MimeType: docx.MimeType, Data: out}, nil
}

func (s *DocumentService) record(kind string, start time.Time, err error) {
	outcome := ExportOutcomeSuccess
	if err != nil {
		outcome = ExportOutcomeFailure
	}
	s.metrics.RecordExport(kind, "docx", outcome, time.Since(start))
}

func (s *DocumentService) singleData(teacher models.Teacher, evaluation models.Evaluation) docx.Data {
	total := evaluation.TotalScore()
	now := s.now().In(s.institution.Location)

	dialogue := "No registrada"
	if evaluation.ReflectiveDialogueDate != nil && *evaluation.ReflectiveDialogueDate != "" {
		dialogue = longDateTime(*evaluation.ReflectiveDialogueDate, evaluation.ReflectiveDialogueTime)
	}
	creation := ""
	if !evaluation.CreatedAt.IsZero() {
		creation = shortDate(evaluation.CreatedAt.In(s.institution.Location))
	}
	evidence := ""
	if evaluation.HasEmbeddableEvidence() {
		evidence = *evaluation.EvidenceImageBase64
	}

	clock := evaluation.Time
	data := docx.Data{
		"teacher_name":                teacher.FullName(),
		"teacher_dni":                 teacher.DNI,
		"teacher_course":              strings.ToUpper(string(teacher.Course)),
		"teacher_phone":               teacher.Phone,
		"teacher_email_personal":      teacher.PersonalEmail,
		"teacher_email_institutional": teacher.InstitutionalEmail,
		"teacher_work_condition":      string(teacher.WorkCondition),
		"teacher_total_hours":         strconv.Itoa(teacher.TotalHours),

		"evaluator_name":     evaluation.EvaluatorName,
		"evaluation_date":    longDateTime(evaluation.Date, &clock),
		"dialogue_date":      dialogue,
		"has_evidence_image": evidence != "",
		"evidence_image":     evidence,
		"total_score":        strconv.Itoa(total),
		"total_score_text":   rubric.BandOf(total).Text(),

		"observations":      orDefault(evaluation.Observations, "No se registraron observaciones."),
		"strengths":         orDefault(evaluation.Strengths, "No se registraron fortalezas."),
		"improvement_areas": orDefault(evaluation.ImprovementAreas, "No se registraron áreas de mejora."),
		"commitments":       orDefault(evaluation.Commitments, "No se registraron compromisos."),

		"creation_date":       creation,
		"current_date":        shortDate(now),
		"current_year":        strconv.Itoa(now.Year()),
		"institution_name":    s.institution.Name,
		"institution_address": s.institution.Address,
	}

	levels := evaluation.Levels()
	for i, dim := range rubric.Dimensions() {
		level := levels[i]
		if !level.Valid() {
			level = rubric.DefaultLevel
		}
		data[string(dim)+"_title"] = rubric.Title(dim)
		data[string(dim)+"_level"] = "Nivel " + string(level)
		data[string(dim)+"_description"] = rubric.Description(dim, level)
	}
	return data
}

func (s *DocumentService) batchData(pairs []dto.EvaluationWithTeacher) docx.Data {
	rows := make([]map[string]interface{}, 0, len(pairs))
	withEvidence := 0
	for _, pair := range pairs {
		total := pair.Evaluation.TotalScore()
		hasEvidence := pair.Evaluation.HasEvidence()
		status := "Sin evidencia"
		if hasEvidence {
			withEvidence++
			status = "Con evidencia"
		}
		rows = append(rows, map[string]interface{}{
			"teacher_name":     pair.Teacher.FullName(),
			"teacher_course":   strings.ToUpper(string(pair.Teacher.Course)),
			"evaluation_date":  longDate(pair.Evaluation.Date),
			"evaluator_name":   pair.Evaluation.EvaluatorName,
			"total_score":      strconv.Itoa(total),
			"total_score_text": rubric.BandOf(total).Text(),
			"has_evidence":     hasEvidence,
			"evidence_status":  status,
		})
	}
	return docx.Data{
		"evaluations":                  rows,
		"total_evaluations":            len(rows),
		"evaluations_with_evidence":    withEvidence,
		"evaluations_without_evidence": len(rows) - withEvidence,
		"generation_date":              shortDate(s.now().In(s.institution.Location)),
		"institution_name":             s.institution.Name,
	}
}

// embedEvidence decodes a data URL and sizes it to fit the page box.
func embedEvidence(_ string, value interface{}) (*docx.Image, error) {
	raw, ok := value.(string)
	if !ok || raw == "" {
		return nil, nil
	}
	data, err := imagefit.DecodeBase64(raw)
	if err != nil {
		return nil, fmt.Errorf("decode evidence image: %w", err)
	}
	tag := imagefit.DetectMIME(data)
	if comma := strings.IndexByte(raw, ','); comma >= 0 {
		tag = raw[:comma]
	}
	size := imagefit.Fitted(imagefit.NativeSize(data))
	return &docx.Image{
		Data:      data,
		Extension: imagefit.Extension(tag),
		Width:     size.Width,
		Height:    size.Height,
	}, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
