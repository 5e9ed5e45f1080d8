package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-eval-api/internal/dto"
	"github.com/noah-isme/teacher-eval-api/internal/models"
	"github.com/noah-isme/teacher-eval-api/internal/rubric"
	appErrors "github.com/noah-isme/teacher-eval-api/pkg/errors"
	"github.com/noah-isme/teacher-eval-api/pkg/imagefit"
	"github.com/noah-isme/teacher-eval-api/pkg/jobs"
	"github.com/noah-isme/teacher-eval-api/pkg/storage"
)

// EvidenceCleanupJob is the queue job type that deletes a replaced evidence blob.
const EvidenceCleanupJob = "evidence.delete"

const statusBatchSize = 10

var allowedEvidenceTypes = []string{"image/jpeg", "image/png", "image/webp"}

type evaluationRepository interface {
	ListAll(ctx context.Context) ([]models.Evaluation, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Evaluation, error)
	ListDatesByTeachers(ctx context.Context, teacherIDs []string) ([]models.Evaluation, error)
	FindByID(ctx context.Context, id string) (*models.Evaluation, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Evaluation, error)
	Create(ctx context.Context, evaluation *models.Evaluation) error
	Update(ctx context.Context, evaluation *models.Evaluation) error
	Delete(ctx context.Context, id string) error
}

type teacherFinder interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type blobStore interface {
	Save(key string, data []byte) (string, error)
	Read(key string) ([]byte, error)
	Delete(key string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type urlSigner interface {
	Generate(ownerID, key string) (string, time.Time, error)
	Parse(token string) (storage.SignedObject, error)
}

// EvidenceConfig bounds accepted evidence images.
type EvidenceConfig struct {
	MaxFileSizeBytes int64
	MaxWidth         int
	MaxHeight        int
	// DownloadPath is the public route that redeems signed tokens.
	DownloadPath string
}

// EvaluationServiceParams groups constructor dependencies.
type EvaluationServiceParams struct {
	Repo      evaluationRepository
	Teachers  teacherFinder
	Blobs     blobStore
	Cleanup   jobEnqueuer
	Signer    urlSigner
	Stats     statsInvalidator
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    EvidenceConfig
}

// EvaluationService orchestrates evaluation records and their evidence images.
type EvaluationService struct {
	repo      evaluationRepository
	teachers  teacherFinder
	blobs     blobStore
	cleanup   jobEnqueuer
	signer    urlSigner
	stats     statsInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       EvidenceConfig
	now       func() time.Time
}

// NewEvaluationService constructs an EvaluationService.
func NewEvaluationService(params EvaluationServiceParams) *EvaluationService {
	cfg := params.Config
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 600 * 1024
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/api/v1/evidence/download"
	}
	validate := params.Validator
	if validate == nil {
		validate = NewValidator()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationService{
		repo:      params.Repo,
		teachers:  params.Teachers,
		blobs:     params.Blobs,
		cleanup:   params.Cleanup,
		signer:    params.Signer,
		stats:     params.Stats,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// List returns every evaluation, newest first.
func (s *EvaluationService) List(ctx context.Context) ([]models.Evaluation, error) {
	evaluations, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}
	return evaluations, nil
}

// ListByTeacher returns a teacher's evaluations, newest first.
func (s *EvaluationService) ListByTeacher(ctx context.Context, teacherID string) ([]models.Evaluation, error) {
	evaluations, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher evaluations")
	}
	return evaluations, nil
}

// Get returns one evaluation including its embedded evidence copy.
func (s *EvaluationService) Get(ctx context.Context, id string) (*models.Evaluation, error) {
	evaluation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Evaluación no encontrada")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}
	return evaluation, nil
}

// FindMany loads the evaluations with the given ids, newest first.
func (s *EvaluationService) FindMany(ctx context.Context, ids []string) ([]models.Evaluation, error) {
	evaluations, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluations")
	}
	return evaluations, nil
}

// Create records a new evaluation. Without an explicit evaluator the caller is recorded.
func (s *EvaluationService) Create(ctx context.Context, actor models.Actor, input models.EvaluationInput, evidence *models.EvidenceUpload) (*models.Evaluation, error) {
	input = normalizeEvaluationInput(input)
	if err := s.validateInput(input); err != nil {
		return nil, err
	}
	image, err := s.prepareEvidence(evidence)
	if err != nil {
		return nil, err
	}
	if err := s.ensureTeacher(ctx, input.TeacherID); err != nil {
		return nil, err
	}

	evaluation := &models.Evaluation{ID: uuid.NewString()}
	applyEvaluationInput(evaluation, input)
	if evaluation.EvaluatorID == "" {
		evaluation.EvaluatorID = actor.ID
		evaluation.EvaluatorName = actor.Name
	}

	if image != nil {
		if err := s.storeEvidence(evaluation, image); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, evaluation); err != nil {
		if evaluation.HasEvidence() {
			s.scheduleBlobDeletion(*evaluation.EvidenceImageKey)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create evaluation")
	}
	s.invalidateStats(ctx)
	s.logger.Info("evaluation created", zap.String("evaluation_id", evaluation.ID), zap.String("teacher_id", evaluation.TeacherID))
	return evaluation, nil
}

// Update replaces the editable fields of an evaluation. A new evidence image
// replaces the stored one and schedules the old blob for deletion.
func (s *EvaluationService) Update(ctx context.Context, id string, input models.EvaluationInput, evidence *models.EvidenceUpload) (*models.Evaluation, error) {
	input = normalizeEvaluationInput(input)
	if err := s.validateInput(input); err != nil {
		return nil, err
	}
	image, err := s.prepareEvidence(evidence)
	if err != nil {
		return nil, err
	}

	evaluation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.TeacherID != evaluation.TeacherID {
		if err := s.ensureTeacher(ctx, input.TeacherID); err != nil {
			return nil, err
		}
	}

	evaluatorID, evaluatorName := evaluation.EvaluatorID, evaluation.EvaluatorName
	applyEvaluationInput(evaluation, input)
	if evaluation.EvaluatorID == "" {
		evaluation.EvaluatorID, evaluation.EvaluatorName = evaluatorID, evaluatorName
	}

	var replaced string
	if image != nil {
		if evaluation.HasEvidence() {
			replaced = *evaluation.EvidenceImageKey
		}
		if err := s.storeEvidence(evaluation, image); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, evaluation); err != nil {
		if image != nil {
			s.scheduleBlobDeletion(*evaluation.EvidenceImageKey)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Evaluación no encontrada")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update evaluation")
	}
	if replaced != "" {
		s.scheduleBlobDeletion(replaced)
	}
	s.invalidateStats(ctx)
	return evaluation, nil
}

// Delete removes an evaluation and schedules its evidence blob for deletion.
func (s *EvaluationService) Delete(ctx context.Context, id string) error {
	evaluation, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Evaluación no encontrada")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete evaluation")
	}
	if evaluation.HasEvidence() {
		s.scheduleBlobDeletion(*evaluation.EvidenceImageKey)
	}
	s.invalidateStats(ctx)
	return nil
}

// StatusForTeachers reports evaluation counts and the latest date per teacher.
// Every requested id gets an entry. Ids are queried in batches of ten.
func (s *EvaluationService) StatusForTeachers(ctx context.Context, teacherIDs []string) (map[string]models.EvaluationStatus, error) {
	status := make(map[string]models.EvaluationStatus, len(teacherIDs))
	unique := make([]string, 0, len(teacherIDs))
	for _, id := range teacherIDs {
		if id == "" {
			continue
		}
		if _, ok := status[id]; ok {
			continue
		}
		status[id] = models.EvaluationStatus{}
		unique = append(unique, id)
	}

	for start := 0; start < len(unique); start += statusBatchSize {
		batch := unique[start:minInt(start+statusBatchSize, len(unique))]
		rows, err := s.repo.ListDatesByTeachers(ctx, batch)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation status")
		}
		for _, row := range rows {
			entry := status[row.TeacherID]
			entry.HasEvaluations = true
			entry.EvaluationCount++
			if entry.LastEvaluationDate == nil || row.Date > *entry.LastEvaluationDate {
				date := row.Date
				entry.LastEvaluationDate = &date
			}
			status[row.TeacherID] = entry
		}
	}
	return status, nil
}

// EvidenceLink returns a signed, expiring download URL for an evaluation's evidence.
func (s *EvaluationService) EvidenceLink(ctx context.Context, id string) (*dto.EvidenceLink, error) {
	evaluation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !evaluation.HasEvidence() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "La evaluación no tiene imagen de evidencia")
	}
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "evidence links are not configured")
	}
	token, expiresAt, err := s.signer.Generate(evaluation.ID, *evaluation.EvidenceImageKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign evidence link")
	}
	return &dto.EvidenceLink{
		URL:       s.cfg.DownloadPath + "?token=" + url.QueryEscape(token),
		ExpiresAt: expiresAt,
	}, nil
}

// OpenEvidence redeems a signed token and returns the blob with its MIME type.
func (s *EvaluationService) OpenEvidence(token string) ([]byte, string, error) {
	if s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrInternal, "evidence links are not configured")
	}
	object, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "El enlace de evidencia expiró")
		}
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "El enlace de evidencia no es válido")
	}
	data, err := s.blobs.Read(object.Key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "Imagen de evidencia no encontrada")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read evidence")
	}
	return data, imagefit.DetectMIME(data), nil
}

// HandleEvidenceCleanup is the queue handler for EvidenceCleanupJob.
func (s *EvaluationService) HandleEvidenceCleanup(ctx context.Context, job jobs.Job) error {
	key, ok := job.Payload.(string)
	if !ok || key == "" {
		return fmt.Errorf("evidence cleanup: unexpected payload %T", job.Payload)
	}
	if err := s.blobs.Delete(key); err != nil {
		return fmt.Errorf("evidence cleanup %s: %w", key, err)
	}
	s.logger.Debug("evidence blob deleted", zap.String("key", key))
	return nil
}

func (s *EvaluationService) validateInput(input models.EvaluationInput) error {
	var messages []string
	if err := s.validator.Struct(input); err != nil {
		messages = evaluationValidationMessages(err)
	}
	if input.ReflectiveDialogueDate != nil && input.ReflectiveDialogueTime == nil {
		messages = append(messages, "Debe ingresar la hora del diálogo reflexivo")
	}
	if input.ReflectiveDialogueDate == nil && input.ReflectiveDialogueTime != nil {
		messages = append(messages, "Debe ingresar la fecha del diálogo reflexivo")
	}
	if len(messages) > 0 {
		return validationError(messages)
	}
	return nil
}

type evidenceImage struct {
	data []byte
	mime string
}

func (s *EvaluationService) prepareEvidence(upload *models.EvidenceUpload) (*evidenceImage, error) {
	if upload == nil || len(upload.Data) == 0 {
		return nil, nil
	}
	if int64(len(upload.Data)) > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("La imagen no debe exceder los %dKB", s.cfg.MaxFileSizeBytes/1024))
	}
	mime := imagefit.DetectMIME(upload.Data)
	allowed := false
	for _, t := range allowedEvidenceTypes {
		if mime == t {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, "Solo se permiten archivos de imagen (JPG, PNG, WebP)")
	}
	data, mime := imagefit.Downscale(upload.Data, s.cfg.MaxWidth, s.cfg.MaxHeight)
	return &evidenceImage{data: data, mime: mime}, nil
}

func (s *EvaluationService) storeEvidence(evaluation *models.Evaluation, image *evidenceImage) error {
	key := fmt.Sprintf("evaluations/%s/evidence-%d.%s", evaluation.ID, s.now().UnixMilli(), imagefit.Extension(image.mime))
	if _, err := s.blobs.Save(key, image.data); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store evidence image")
	}
	encoded := "data:" + image.mime + ";base64," + base64.StdEncoding.EncodeToString(image.data)
	evaluation.EvidenceImageKey = &key
	evaluation.EvidenceImageBase64 = &encoded
	s.metrics.ObserveEvidenceUpload(len(image.data))
	return nil
}

// scheduleBlobDeletion queues removal of a blob, deleting inline when the queue refuses it.
func (s *EvaluationService) scheduleBlobDeletion(key string) {
	if s.cleanup != nil {
		err := s.cleanup.Enqueue(jobs.Job{ID: uuid.NewString(), Type: EvidenceCleanupJob, Payload: key})
		if err == nil {
			return
		}
		s.logger.Warn("evidence cleanup enqueue failed", zap.String("key", key), zap.Error(err))
	}
	if err := s.blobs.Delete(key); err != nil {
		s.logger.Error("evidence blob delete failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *EvaluationService) ensureTeacher(ctx context.Context, teacherID string) error {
	if s.teachers == nil {
		return nil
	}
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Docente no encontrado")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return nil
}

func (s *EvaluationService) invalidateStats(ctx context.Context) {
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
}

func normalizeEvaluationInput(in models.EvaluationInput) models.EvaluationInput {
	in.TeacherID = strings.TrimSpace(in.TeacherID)
	in.EvaluatorID = strings.TrimSpace(in.EvaluatorID)
	in.EvaluatorName = strings.TrimSpace(in.EvaluatorName)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	in.ReflectiveDialogueDate = trimOptional(in.ReflectiveDialogueDate)
	in.ReflectiveDialogueTime = trimOptional(in.ReflectiveDialogueTime)
	for _, level := range []*string{&in.Performance1, &in.Performance2, &in.Performance3, &in.Performance4, &in.Performance5, &in.Performance6} {
		*level = strings.ToUpper(strings.TrimSpace(*level))
	}
	return in
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func levelOrDefault(raw string) rubric.Level {
	if raw == "" {
		return rubric.DefaultLevel
	}
	return rubric.Level(raw)
}

func applyEvaluationInput(e *models.Evaluation, in models.EvaluationInput) {
	e.TeacherID = in.TeacherID
	if in.EvaluatorID != "" {
		e.EvaluatorID = in.EvaluatorID
		e.EvaluatorName = in.EvaluatorName
	} else {
		e.EvaluatorID = ""
	}
	e.Date = in.Date
	e.Time = in.Time
	e.ReflectiveDialogueDate = in.ReflectiveDialogueDate
	e.ReflectiveDialogueTime = in.ReflectiveDialogueTime
	e.Performance1 = levelOrDefault(in.Performance1)
	e.Performance2 = levelOrDefault(in.Performance2)
	e.Performance3 = levelOrDefault(in.Performance3)
	e.Performance4 = levelOrDefault(in.Performance4)
	e.Performance5 = levelOrDefault(in.Performance5)
	e.Performance6 = levelOrDefault(in.Performance6)
	e.Observations = in.Observations
	e.Strengths = in.Strengths
	e.ImprovementAreas = in.ImprovementAreas
	e.Commitments = in.Commitments
}
