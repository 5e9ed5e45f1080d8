package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teacher-eval-api/internal/dto"
	"github.com/noah-isme/teacher-eval-api/internal/models"
	appErrors "github.com/noah-isme/teacher-eval-api/pkg/errors"
	"github.com/noah-isme/teacher-eval-api/pkg/response"
)

const (
	payloadField  = "payload"
	evidenceField = "evidence"

	defaultMaxRequestBytes int64 = 8 << 20
)

type evaluationService interface {
	List(ctx context.Context) ([]models.Evaluation, error)
	Get(ctx context.Context, id string) (*models.Evaluation, error)
	Create(ctx context.Context, actor models.Actor, input models.EvaluationInput, evidence *models.EvidenceUpload) (*models.Evaluation, error)
	Update(ctx context.Context, id string, input models.EvaluationInput, evidence *models.EvidenceUpload) (*models.Evaluation, error)
	Delete(ctx context.Context, id string) error
	EvidenceLink(ctx context.Context, id string) (*dto.EvidenceLink, error)
	OpenEvidence(token string) ([]byte, string, error)
}

type evaluationDocuments interface {
	EvaluationDocument(ctx context.Context, evaluationID string) (*dto.File, error)
	BatchReport(ctx context.Context, evaluationIDs []string) (*dto.File, error)
}

// EvaluationHandler exposes evaluation CRUD, documents and evidence downloads.
type EvaluationHandler struct {
	evaluations     evaluationService
	documents       evaluationDocuments
	maxRequestBytes int64
}

// NewEvaluationHandler constructs an EvaluationHandler. maxRequestBytes caps
// the whole request body; the evidence size limit itself is enforced by the service.
func NewEvaluationHandler(evaluations evaluationService, documents evaluationDocuments, maxRequestBytes int64) *EvaluationHandler {
	if maxRequestBytes <= 0 {
		maxRequestBytes = defaultMaxRequestBytes
	}
	return &EvaluationHandler{
		evaluations:     evaluations,
		documents:       documents,
		maxRequestBytes: maxRequestBytes,
	}
}

// List godoc
// @Summary List evaluations
// @Tags Evaluations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /evaluations [get]
func (h *EvaluationHandler) List(c *gin.Context) {
	evaluations, err := h.evaluations.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluations, nil)
}

// Get godoc
// @Summary Get evaluation
// @Tags Evaluations
// @Produce json
// @Param id path string true "Evaluation ID"
// @Success 200 {object} response.Envelope
// @Router /evaluations/{id} [get]
func (h *EvaluationHandler) Get(c *gin.Context) {
	evaluation, err := h.evaluations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluation, nil)
}

// Create godoc
// @Summary Create evaluation
// @Description Accepts either a JSON body or multipart/form-data with a JSON "payload" field and an optional "evidence" image.
// @Tags Evaluations
// @Accept json,mpfd
// @Produce json
// @Param payload formData string true "Evaluation payload as JSON"
// @Param evidence formData file false "Evidence image (JPEG, PNG or WebP)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /evaluations [post]
func (h *EvaluationHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	input, evidence, err := h.bindEvaluation(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	evaluation, err := h.evaluations.Create(c.Request.Context(), claims.Actor(), input, evidence)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, evaluation, response.Message("Evaluación guardada exitosamente"))
}

// Update godoc
// @Summary Update evaluation
// @Description Same body formats as create. A new evidence file replaces the stored one.
// @Tags Evaluations
// @Accept json,mpfd
// @Produce json
// @Param id path string true "Evaluation ID"
// @Param payload formData string true "Evaluation payload as JSON"
// @Param evidence formData file false "Evidence image (JPEG, PNG or WebP)"
// @Success 200 {object} response.Envelope
// @Router /evaluations/{id} [put]
func (h *EvaluationHandler) Update(c *gin.Context) {
	input, evidence, err := h.bindEvaluation(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	evaluation, err := h.evaluations.Update(c.Request.Context(), c.Param("id"), input, evidence)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluation, nil, response.Message("Evaluación actualizada exitosamente"))
}

// Delete godoc
// @Summary Delete evaluation
// @Tags Evaluations
// @Param id path string true "Evaluation ID"
// @Success 204
// @Router /evaluations/{id} [delete]
func (h *EvaluationHandler) Delete(c *gin.Context) {
	if err := h.evaluations.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Document godoc
// @Summary Download the evaluation as a Word document
// @Tags Evaluations
// @Produce application/vnd.openxmlformats-officedocument.wordprocessingml.document
// @Param id path string true "Evaluation ID"
// @Success 200 {file} file
// @Router /evaluations/{id}/document [get]
func (h *EvaluationHandler) Document(c *gin.Context) {
	file, err := h.documents.EvaluationDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.MimeType, file.Data)
}

// Report godoc
// @Summary Download a batch report of several evaluations
// @Tags Evaluations
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.wordprocessingml.document
// @Param payload body dto.BatchReportRequest true "Evaluation IDs"
// @Success 200 {file} file
// @Router /evaluations/report [post]
func (h *EvaluationHandler) Report(c *gin.Context) {
	var req dto.BatchReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report payload"))
		return
	}
	if len(req.IDs) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "Seleccione al menos una evaluación"))
		return
	}
	file, err := h.documents.BatchReport(c.Request.Context(), req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.MimeType, file.Data)
}

// EvidenceLink godoc
// @Summary Issue a signed download link for the evidence image
// @Tags Evaluations
// @Produce json
// @Param id path string true "Evaluation ID"
// @Success 200 {object} response.Envelope
// @Router /evaluations/{id}/evidence-link [get]
func (h *EvaluationHandler) EvidenceLink(c *gin.Context) {
	link, err := h.evaluations.EvidenceLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// DownloadEvidence godoc
// @Summary Download an evidence image with a signed token
// @Tags Evaluations
// @Produce image/jpeg,image/png,image/webp
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /evidence/download [get]
func (h *EvaluationHandler) DownloadEvidence(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	data, mime, err := h.evaluations.OpenEvidence(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=0, no-store")
	c.Data(http.StatusOK, mime, data)
}

func (h *EvaluationHandler) bindEvaluation(c *gin.Context) (models.EvaluationInput, *models.EvidenceUpload, error) {
	var input models.EvaluationInput
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestBytes)

	if !strings.HasPrefix(c.ContentType(), gin.MIMEMultipartPOSTForm) {
		if err := c.ShouldBindJSON(&input); err != nil {
			return input, nil, bindError(err)
		}
		return input, nil, nil
	}

	if err := c.Request.ParseMultipartForm(h.maxRequestBytes); err != nil {
		return input, nil, bindError(err)
	}
	raw := c.Request.FormValue(payloadField)
	if strings.TrimSpace(raw) == "" {
		return input, nil, appErrors.Clone(appErrors.ErrValidation, "payload is required")
	}
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return input, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evaluation payload")
	}

	header, err := c.FormFile(evidenceField)
	if errors.Is(err, http.ErrMissingFile) {
		return input, nil, nil
	}
	if err != nil {
		return input, nil, bindError(err)
	}
	file, err := header.Open()
	if err != nil {
		return input, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read evidence")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return input, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read evidence")
	}
	return input, &models.EvidenceUpload{Filename: header.Filename, Data: data}, nil
}

func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return appErrors.Wrap(err, appErrors.ErrPayloadTooLarge.Code, appErrors.ErrPayloadTooLarge.Status, "La solicitud excede el tamaño permitido")
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evaluation payload")
}
