package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-eval-api/internal/dto"
	"github.com/noah-isme/teacher-eval-api/internal/models"
	"github.com/noah-isme/teacher-eval-api/internal/rubric"
	"github.com/noah-isme/teacher-eval-api/pkg/docx"
	appErrors "github.com/noah-isme/teacher-eval-api/pkg/errors"
)

type mapTemplates map[string][]byte

func (m mapTemplates) Read(name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, errors.New("template not found")
	}
	return data, nil
}

func wordTemplate(t *testing.T, body string) []byte {
	t.Helper()
	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/></Types>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body>` +
			body + `</w:body></w:document>`,
	}
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for name, content := range parts {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func documentXML(t *testing.T, doc []byte) string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(doc), int64(len(doc)))
	require.NoError(t, err)
	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(raw)
	}
	t.Fatal("document.xml missing")
	return ""
}

func paragraph(text string) string {
	return `<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func documentTeacher() models.Teacher {
	return models.Teacher{
		ID: "1", DNI: "12345678", LastNames: "Quispe  Mamani", FirstNames: "Rosa Elena",
		Phone: "987654321", PersonalEmail: "rosa@gmail.com", InstitutionalEmail: "rquispe@ceprunsa.edu.pe",
		Course: models.CourseMatematica, WorkCondition: models.WorkConditionPartTime,
		ShiftHours: models.ShiftHours{"turno 1": 6}, TotalHours: 6,
	}
}

func newTestDocumentService(templates mapTemplates) *DocumentService {
	lima := time.FixedZone("PET", -5*3600)
	svc := NewDocumentService(DocumentServiceParams{
		Templates:   templates,
		Institution: Institution{Name: "CEPRUNSA", Address: "UNSA", Location: lima},
	})
	svc.now = func() time.Time { return time.Date(2024, 3, 16, 2, 0, 0, 0, time.UTC) }
	return svc
}

func TestRenderSingleEvaluationFillsTemplate(t *testing.T) {
	body := paragraph("{teacher_name} {teacher_course} {teacher_total_hours}") +
		paragraph("{evaluation_date} | {dialogue_date}") +
		paragraph("{total_score} {total_score_text}") +
		paragraph("{performance1_title}: {performance1_level} {performance2_level}") +
		paragraph("{observations} / {strengths}") +
		paragraph("{current_date} {current_year} {creation_date} {institution_name}") +
		paragraph("{#has_evidence_image}{%evidence_image}{/has_evidence_image}{^has_evidence_image}Sin imagen{/has_evidence_image}")
	svc := newTestDocumentService(mapTemplates{SingleEvaluationTemplate: wordTemplate(t, body)})

	evaluation := models.Evaluation{
		ID: "e1", TeacherID: "1", EvaluatorName: "Carla", Date: "2024-03-12", Time: "10:00",
		Performance1: rubric.LevelIV, Performance2: rubric.LevelIII, Performance3: rubric.LevelIII,
		Performance4: rubric.LevelIII, Performance5: rubric.LevelIII, Performance6: rubric.LevelIII,
		Observations: "Clase dinámica",
		CreatedAt:    time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC),
	}

	file, err := svc.RenderSingleEvaluation(context.Background(), documentTeacher(), evaluation)
	require.NoError(t, err)
	assert.Equal(t, "Evaluacion_Quispe_Mamani_Rosa_Elena_20240312.docx", file.Filename)
	assert.Equal(t, docx.MimeType, file.MimeType)

	doc := documentXML(t, file.Data)
	assert.Contains(t, doc, "Quispe  Mamani, Rosa Elena MATEMÁTICA 6")
	assert.Contains(t, doc, "12 de marzo de 2024 a las 10:00 | No registrada")
	assert.Contains(t, doc, "19 Satisfactorio (15-20 puntos)")
	assert.Contains(t, doc, rubric.Title(rubric.Dimensions()[0])+": Nivel IV Nivel III")
	assert.Contains(t, doc, "Clase dinámica / No se registraron fortalezas.")
	assert.Contains(t, doc, "15/3/2024 2024 12/3/2024 CEPRUNSA")
	assert.Contains(t, doc, "Sin imagen")
	assert.NotContains(t, doc, "w:drawing")
}

func TestRenderSingleEvaluationKeepsBlankCommentary(t *testing.T) {
	svc := newTestDocumentService(mapTemplates{SingleEvaluationTemplate: wordTemplate(t, paragraph("[{observations}][{strengths}]"))})
	evaluation := models.Evaluation{ID: "e1", Date: "2024-03-12", Time: "10:00", Observations: "   "}

	file, err := svc.RenderSingleEvaluation(context.Background(), documentTeacher(), evaluation)
	require.NoError(t, err)
	doc := documentXML(t, file.Data)
	assert.Contains(t, doc, "[   ][No se registraron fortalezas.]")
	assert.NotContains(t, doc, "No se registraron observaciones.")
}

func TestRenderSingleEvaluationEmbedsEvidence(t *testing.T) {
	svc := newTestDocumentService(mapTemplates{SingleEvaluationTemplate: wordTemplate(t, paragraph("{%evidence_image}"))})
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 1160, 100))
	clock := "16:30"
	dialogue := "2024-03-20"
	evaluation := models.Evaluation{
		ID: "e1", Date: "2024-03-12", Time: "10:00",
		ReflectiveDialogueDate: &dialogue, ReflectiveDialogueTime: &clock,
		EvidenceImageBase64: &encoded,
	}

	file, err := svc.RenderSingleEvaluation(context.Background(), documentTeacher(), evaluation)
	require.NoError(t, err)
	doc := documentXML(t, file.Data)
	assert.Contains(t, doc, "w:drawing")
	assert.Contains(t, doc, `cx="5524500" cy="476250"`)
}

func TestRenderBatchSummarisesEvidence(t *testing.T) {
	body := paragraph("{#evaluations}") +
		paragraph("{teacher_name}|{teacher_course}|{evaluation_date}|{total_score}|{evidence_status}") +
		paragraph("{/evaluations}") +
		paragraph("{total_evaluations} {evaluations_with_evidence} {evaluations_without_evidence} {generation_date}")
	svc := newTestDocumentService(mapTemplates{BatchReportTemplate: wordTemplate(t, body)})

	key := "evaluations/e1/evidence.png"
	pairs := []dto.EvaluationWithTeacher{
		{Teacher: documentTeacher(), Evaluation: scoredEvaluation("e1", "1", "2024-03-12", rubric.LevelIV)},
		{Teacher: models.Teacher{LastNames: "Alvarez", FirstNames: "Ana", Course: models.CourseFisica}, Evaluation: scoredEvaluation("e2", "2", "2024-01-05", rubric.LevelI)},
	}
	pairs[0].Evaluation.EvidenceImageKey = &key

	file, err := svc.RenderBatch(context.Background(), pairs)
	require.NoError(t, err)
	assert.Equal(t, "Reporte_Evaluaciones_20240316.docx", file.Filename)

	doc := documentXML(t, file.Data)
	assert.Contains(t, doc, "Quispe  Mamani, Rosa Elena|MATEMÁTICA|12 de marzo de 2024|24|Con evidencia")
	assert.Contains(t, doc, "Alvarez, Ana|FÍSICA|5 de enero de 2024|6|Sin evidencia")
	assert.Contains(t, doc, "2 1 1 15/3/2024")
}

func TestDocumentServiceFailures(t *testing.T) {
	svc := newTestDocumentService(mapTemplates{})
	_, err := svc.RenderBatch(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrTemplate))
	assert.Contains(t, err.Error(), "No se pudo generar el documento")

	svc = newTestDocumentService(mapTemplates{SingleEvaluationTemplate: wordTemplate(t, paragraph("{#broken}"))})
	_, err = svc.RenderSingleEvaluation(context.Background(), documentTeacher(), models.Evaluation{Date: "2024-03-12"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrExport))
}
