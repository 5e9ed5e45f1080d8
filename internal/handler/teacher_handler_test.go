package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-eval-api/internal/dto"
	"github.com/noah-isme/teacher-eval-api/internal/models"
	"github.com/noah-isme/teacher-eval-api/internal/service"
	appErrors "github.com/noah-isme/teacher-eval-api/pkg/errors"
)

type fakeTeacherSrv struct {
	page       *models.TeacherPage
	teacher    *models.Teacher
	err        error
	lastFilter models.TeacherFilter
	lastInput  models.TeacherInput
	lastID     string
	imported   []models.TeacherInput
	deleted    string
}

func (f *fakeTeacherSrv) ListPaginated(_ context.Context, filter models.TeacherFilter) (*models.TeacherPage, error) {
	f.lastFilter = filter
	return f.page, f.err
}

func (f *fakeTeacherSrv) Get(_ context.Context, id string) (*models.Teacher, error) {
	f.lastID = id
	return f.teacher, f.err
}

func (f *fakeTeacherSrv) Create(_ context.Context, input models.TeacherInput) (*models.Teacher, error) {
	f.lastInput = input
	return f.teacher, f.err
}

func (f *fakeTeacherSrv) Update(_ context.Context, id string, input models.TeacherInput) (*models.Teacher, error) {
	f.lastID = id
	f.lastInput = input
	return f.teacher, f.err
}

func (f *fakeTeacherSrv) Delete(_ context.Context, id string) error {
	f.deleted = id
	return f.err
}

func (f *fakeTeacherSrv) Import(_ context.Context, inputs []models.TeacherInput) (*dto.ImportResult, error) {
	f.imported = inputs
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ImportResult{Imported: len(inputs), Total: len(inputs)}, nil
}

type fakeTeacherEvaluations struct {
	evaluations []models.Evaluation
	status      map[string]models.EvaluationStatus
	lastIDs     []string
}

func (f *fakeTeacherEvaluations) ListByTeacher(context.Context, string) ([]models.Evaluation, error) {
	return f.evaluations, nil
}

func (f *fakeTeacherEvaluations) StatusForTeachers(_ context.Context, ids []string) (map[string]models.EvaluationStatus, error) {
	f.lastIDs = ids
	return f.status, nil
}

type fakeTeacherExporter struct {
	format service.SpreadsheetFormat
	err    error
}

func (f *fakeTeacherExporter) TeacherSpreadsheet(_ context.Context, _ string, format service.SpreadsheetFormat) (*dto.File, error) {
	f.format = format
	if f.err != nil {
		return nil, f.err
	}
	return &dto.File{Filename: "Evaluaciones_Castro_Rosa_2024-03-15.csv", MimeType: "text/csv; charset=utf-8", Data: []byte("a,b\n")}, nil
}

func newTeacherContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	return c, rec
}

func TestTeacherHandlerListParsesFilters(t *testing.T) {
	svc := &fakeTeacherSrv{page: &models.TeacherPage{
		Teachers:    []models.Teacher{{ID: "t1", LastNames: "Castro"}},
		TotalCount:  11,
		CurrentPage: 2,
		HasNextPage: true,
	}}
	handler := NewTeacherHandler(svc, &fakeTeacherEvaluations{}, &fakeTeacherExporter{})

	c, rec := newTeacherContext(http.MethodGet, "/teachers?page=2&limit=5&curso=F%C3%8DSICA&turno=turno%201&search=%20cas%20", "")
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.TeacherFilter{Course: "FÍSICA", Shift: "turno 1", Search: "cas", Page: 2, PageSize: 5}, svc.lastFilter)

	var envelope listEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "Castro", envelope.Data[0]["last_names"])
	assert.Equal(t, float64(11), envelope.Pagination["total_count"])
	assert.Equal(t, true, envelope.Pagination["has_next_page"])
}

func TestTeacherHandlerListDefaultsInvalidPaging(t *testing.T) {
	svc := &fakeTeacherSrv{page: &models.TeacherPage{CurrentPage: 1}}
	handler := NewTeacherHandler(svc, &fakeTeacherEvaluations{}, &fakeTeacherExporter{})

	c, rec := newTeacherContext(http.MethodGet, "/teachers?page=abc&limit=-3", "")
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.lastFilter.Page)
	assert.Equal(t, 10, svc.lastFilter.PageSize)
}

func TestTeacherHandlerListCapsPageSize(t *testing.T) {
	svc := &fakeTeacherSrv{page: &models.TeacherPage{CurrentPage: 1}}
	handler := NewTeacherHandler(svc, &fakeTeacherEvaluations{}, &fakeTeacherExporter{})

	c, rec := newTeacherContext(http.MethodGet, "/teachers?page=4611686018427387905&limit=1000", "")
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1<<62+1, svc.lastFilter.Page)
	assert.Equal(t, maxTeacherPageSize, svc.lastFilter.PageSize)
}

func TestTeacherHandlerStatusRequiresIDs(t *testing.T) {
	evaluations := &fakeTeacherEvaluations{status: map[string]models.EvaluationStatus{}}
	handler := NewTeacherHandler(&fakeTeacherSrv{}, evaluations, &fakeTeacherExporter{})

	c, rec := newTeacherContext(http.MethodGet, "/teachers/status?ids=%20,", "")
	handler.Status(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newTeacherContext(http.MethodGet, "/teachers/status?ids=t1,%20t2", "")
	handler.Status(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"t1", "t2"}, evaluations.lastIDs)
}

func TestTeacherHandlerCreate(t *testing.T) {
	svc := &fakeTeacherSrv{teacher: &models.Teacher{ID: "t9", DNI: "12345678"}}
	handler := NewTeacherHandler(svc, &fakeTeacherEvaluations{}, &fakeTeacherExporter{})

	c, rec := newTeacherContext(http.MethodPost, "/teachers", `{"dni":"12345678","last_names":"Castro","first_names":"Rosa"}`)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Castro", svc.lastInput.LastNames)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "t9", envelope.Data["id"])
	assert.Equal(t, "Docente registrado correctamente", envelope.Meta["message"])
}

func TestTeacherHandlerCreateRejectsMalformedJSON(t *testing.T) {
	handler := NewTeacherHandler(&fakeTeacherSrv{}, &fakeTeacherEvaluations{}, &fakeTeacherExporter{})

	c, rec := newTeacherContext(http.MethodPost, "/teachers", `{"dni":`)
	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTeacherHandlerCreateSurfacesConflicts(t *testing.T) {
	svc := &fakeTeacherSrv{err: appErrors.Clone(appErrors.ErrConflict, "Ya existe un docente con el DNI 12345678")}
	handler := NewTeacherHandler(svc, &fakeTeacherEvaluations{}, &fakeTeacherExporter{})

	c, rec := newTeacherContext(http.MethodPost, "/teachers", `{"dni":"12345678"}`)
	handler.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "Ya existe un docente con el DNI 12345678", envelope.Error["message"])
}

func TestTeacherHandlerImport(t *testing.T) {
	svc := &fakeTeacherSrv{}
	handler := NewTeacherHandler(svc, &fakeTeacherEvaluations{}, &fakeTeacherExporter{})

	c, rec := newTeacherContext(http.MethodPost, "/teachers/import", `[{"dni":"1"},{"dni":"2"}]`)
	handler.Import(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, svc.imported, 2)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "Se importaron 2 docentes exitosamente", envelope.Meta["message"])
}

func TestTeacherHandlerUpdateAndDelete(t *testing.T) {
	svc := &fakeTeacherSrv{teacher: &models.Teacher{ID: "t1"}}
	handler := NewTeacherHandler(svc, &fakeTeacherEvaluations{}, &fakeTeacherExporter{})

	c, rec := newTeacherContext(http.MethodPut, "/teachers/t1", `{"dni":"1"}`)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.Update(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", svc.lastID)

	c, _ = newTeacherContext(http.MethodDelete, "/teachers/t1", "")
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "t1", svc.deleted)
}

func TestTeacherHandlerGetNotFound(t *testing.T) {
	svc := &fakeTeacherSrv{err: appErrors.Clone(appErrors.ErrNotFound, "Docente no encontrado")}
	handler := NewTeacherHandler(svc, &fakeTeacherEvaluations{}, &fakeTeacherExporter{})

	c, rec := newTeacherContext(http.MethodGet, "/teachers/missing", "")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTeacherHandlerExportEvaluations(t *testing.T) {
	exporter := &fakeTeacherExporter{}
	handler := NewTeacherHandler(&fakeTeacherSrv{}, &fakeTeacherEvaluations{}, exporter)

	c, rec := newTeacherContext(http.MethodGet, "/teachers/t1/evaluations/export?format=csv", "")
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.ExportEvaluations(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.SpreadsheetCSV, exporter.format)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Evaluaciones_Castro_Rosa_2024-03-15.csv")
	assert.Equal(t, "a,b\n", rec.Body.String())
}

func TestTeacherHandlerExportRejectsUnknownFormat(t *testing.T) {
	exporter := &fakeTeacherExporter{}
	handler := NewTeacherHandler(&fakeTeacherSrv{}, &fakeTeacherEvaluations{}, exporter)

	c, rec := newTeacherContext(http.MethodGet, "/teachers/t1/evaluations/export?format=ods", "")
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.ExportEvaluations(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, exporter.format)
}
