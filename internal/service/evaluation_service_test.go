package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-eval-api/internal/models"
	"github.com/noah-isme/teacher-eval-api/internal/rubric"
	appErrors "github.com/noah-isme/teacher-eval-api/pkg/errors"
	"github.com/noah-isme/teacher-eval-api/pkg/jobs"
	"github.com/noah-isme/teacher-eval-api/pkg/storage"
)

type mockEvaluationRepo struct {
	items     map[string]*models.Evaluation
	updateErr error
	dateCalls [][]string
}

func newMockEvaluationRepo(evaluations ...models.Evaluation) *mockEvaluationRepo {
	repo := &mockEvaluationRepo{items: map[string]*models.Evaluation{}}
	for i := range evaluations {
		e := evaluations[i]
		repo.items[e.ID] = &e
	}
	return repo
}

func (m *mockEvaluationRepo) ListAll(context.Context) ([]models.Evaluation, error) {
	out := make([]models.Evaluation, 0, len(m.items))
	for _, e := range m.items {
		out = append(out, *e)
	}
	return out, nil
}

func (m *mockEvaluationRepo) ListByTeacher(ctx context.Context, teacherID string) ([]models.Evaluation, error) {
	var out []models.Evaluation
	for _, e := range m.items {
		if e.TeacherID == teacherID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockEvaluationRepo) ListDatesByTeachers(ctx context.Context, teacherIDs []string) ([]models.Evaluation, error) {
	m.dateCalls = append(m.dateCalls, append([]string(nil), teacherIDs...))
	wanted := map[string]bool{}
	for _, id := range teacherIDs {
		wanted[id] = true
	}
	var out []models.Evaluation
	for _, e := range m.items {
		if wanted[e.TeacherID] {
			out = append(out, models.Evaluation{TeacherID: e.TeacherID, Date: e.Date})
		}
	}
	return out, nil
}

func (m *mockEvaluationRepo) FindByID(ctx context.Context, id string) (*models.Evaluation, error) {
	if e, ok := m.items[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEvaluationRepo) FindByIDs(ctx context.Context, ids []string) ([]models.Evaluation, error) {
	var out []models.Evaluation
	for _, id := range ids {
		if e, ok := m.items[id]; ok {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockEvaluationRepo) Create(ctx context.Context, evaluation *models.Evaluation) error {
	cp := *evaluation
	m.items[evaluation.ID] = &cp
	return nil
}

func (m *mockEvaluationRepo) Update(ctx context.Context, evaluation *models.Evaluation) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.items[evaluation.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *evaluation
	m.items[evaluation.ID] = &cp
	return nil
}

func (m *mockEvaluationRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

type memoryBlobs struct {
	data    map[string][]byte
	deleted []string
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{data: map[string][]byte{}}
}

func (m *memoryBlobs) Save(key string, data []byte) (string, error) {
	m.data[key] = data
	return key, nil
}

func (m *memoryBlobs) Read(key string) ([]byte, error) {
	data, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("read blob: %w", os.ErrNotExist)
	}
	return data, nil
}

func (m *memoryBlobs) Delete(key string) error {
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type evaluationFixture struct {
	svc      *EvaluationService
	repo     *mockEvaluationRepo
	teachers *mockTeacherRepo
	blobs    *memoryBlobs
	queue    *recordingQueue
	stats    *spyInvalidator
}

func newEvaluationFixture(evaluations ...models.Evaluation) *evaluationFixture {
	f := &evaluationFixture{
		repo:     newMockEvaluationRepo(evaluations...),
		teachers: newMockTeacherRepo(sampleTeachers()...),
		blobs:    newMemoryBlobs(),
		queue:    &recordingQueue{},
		stats:    &spyInvalidator{},
	}
	f.svc = NewEvaluationService(EvaluationServiceParams{
		Repo:     f.repo,
		Teachers: f.teachers,
		Blobs:    f.blobs,
		Cleanup:  f.queue,
		Signer:   storage.NewSignedURLSigner("secret", time.Minute),
		Stats:    f.stats,
		Config:   EvidenceConfig{MaxFileSizeBytes: 600 * 1024, MaxWidth: 1600, MaxHeight: 1600},
	})
	f.svc.now = func() time.Time { return time.UnixMilli(1710000000000) }
	return f
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func evaluationInput(teacherID string) models.EvaluationInput {
	return models.EvaluationInput{
		TeacherID:    teacherID,
		Date:         "2024-03-12",
		Time:         "10:00",
		Performance1: "iv",
		Performance3: "II",
		Observations: "Buen manejo del aula",
	}
}

func TestEvaluationServiceCreateDefaultsLevelsAndEvaluator(t *testing.T) {
	f := newEvaluationFixture()
	actor := models.Actor{ID: "u-1", Name: "Carla Evaluadora"}

	created, err := f.svc.Create(context.Background(), actor, evaluationInput("1"), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "u-1", created.EvaluatorID)
	assert.Equal(t, "Carla Evaluadora", created.EvaluatorName)
	assert.Equal(t, rubric.Levels{rubric.LevelIV, rubric.LevelI, rubric.LevelII, rubric.LevelI, rubric.LevelI, rubric.LevelI}, created.Levels())
	assert.Equal(t, 10, created.TotalScore())
	assert.False(t, created.HasEvidence())
	assert.Contains(t, f.repo.items, created.ID)
	assert.Equal(t, 1, f.stats.calls)

	input := evaluationInput("1")
	input.EvaluatorID = "u-9"
	input.EvaluatorName = "Otro"
	created, err = f.svc.Create(context.Background(), actor, input, nil)
	require.NoError(t, err)
	assert.Equal(t, "Otro", created.EvaluatorName)
}

func TestEvaluationServiceCreateValidation(t *testing.T) {
	f := newEvaluationFixture()

	_, err := f.svc.Create(context.Background(), models.Actor{}, models.EvaluationInput{}, nil)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "Debe seleccionar un docente")
	assert.Contains(t, err.Error(), "Debe ingresar la fecha de evaluación")
	assert.Contains(t, err.Error(), "Debe ingresar la hora de evaluación")

	input := evaluationInput("1")
	dialogue := "2024-03-20"
	input.ReflectiveDialogueDate = &dialogue
	_, err = f.svc.Create(context.Background(), models.Actor{}, input, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Debe ingresar la hora del diálogo reflexivo")

	input = evaluationInput("1")
	input.Performance2 = "V"
	_, err = f.svc.Create(context.Background(), models.Actor{}, input, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "El nivel V de performance2 no es válido")

	_, err = f.svc.Create(context.Background(), models.Actor{}, evaluationInput("ghost"), nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Empty(t, f.repo.items)
}

func TestEvaluationServiceCreateStoresEvidence(t *testing.T) {
	f := newEvaluationFixture()
	upload := &models.EvidenceUpload{Filename: "aula.png", Data: pngBytes(t, 20, 10)}

	created, err := f.svc.Create(context.Background(), models.Actor{ID: "u"}, evaluationInput("1"), upload)
	require.NoError(t, err)
	require.True(t, created.HasEvidence())
	assert.Equal(t, fmt.Sprintf("evaluations/%s/evidence-1710000000000.png", created.ID), *created.EvidenceImageKey)
	assert.Contains(t, f.blobs.data, *created.EvidenceImageKey)
	require.True(t, created.HasEmbeddableEvidence())
	assert.True(t, strings.HasPrefix(*created.EvidenceImageBase64, "data:image/png;base64,"))
}

func TestEvaluationServiceRejectsBadEvidence(t *testing.T) {
	f := newEvaluationFixture()

	tooLarge := &models.EvidenceUpload{Data: bytes.Repeat([]byte{0}, 600*1024+1)}
	_, err := f.svc.Create(context.Background(), models.Actor{}, evaluationInput("1"), tooLarge)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPayloadTooLarge))
	assert.Contains(t, err.Error(), "600KB")

	notImage := &models.EvidenceUpload{Data: []byte("%PDF-1.4 not an image")}
	_, err = f.svc.Create(context.Background(), models.Actor{}, evaluationInput("1"), notImage)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnsupportedMedia))
	assert.Empty(t, f.blobs.data)
}

func TestEvaluationServiceUpdateReplacesEvidence(t *testing.T) {
	oldKey := "evaluations/e1/evidence-1.png"
	existing := models.Evaluation{
		ID: "e1", TeacherID: "1", EvaluatorID: "u-1", EvaluatorName: "Carla",
		Date: "2024-01-01", Time: "09:00", EvidenceImageKey: &oldKey,
	}
	f := newEvaluationFixture(existing)
	f.blobs.data[oldKey] = []byte("old")

	updated, err := f.svc.Update(context.Background(), "e1", evaluationInput("1"), &models.EvidenceUpload{Data: pngBytes(t, 4, 4)})
	require.NoError(t, err)
	assert.Equal(t, "Carla", updated.EvaluatorName)
	assert.Equal(t, "2024-03-12", updated.Date)
	assert.NotEqual(t, oldKey, *updated.EvidenceImageKey)

	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, EvidenceCleanupJob, f.queue.jobs[0].Type)
	assert.Equal(t, oldKey, f.queue.jobs[0].Payload)

	require.NoError(t, f.svc.HandleEvidenceCleanup(context.Background(), f.queue.jobs[0]))
	assert.NotContains(t, f.blobs.data, oldKey)
	assert.Error(t, f.svc.HandleEvidenceCleanup(context.Background(), jobs.Job{Payload: 42}))

	_, err = f.svc.Update(context.Background(), "missing", evaluationInput("1"), nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEvaluationServiceUpdateFailureDropsNewBlob(t *testing.T) {
	f := newEvaluationFixture(models.Evaluation{ID: "e1", TeacherID: "1", Date: "2024-01-01", Time: "09:00"})
	f.repo.updateErr = errors.New("write failed")
	f.queue.err = errors.New("queue stopped")

	_, err := f.svc.Update(context.Background(), "e1", evaluationInput("1"), &models.EvidenceUpload{Data: pngBytes(t, 4, 4)})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.Len(t, f.blobs.deleted, 1)
	assert.Empty(t, f.blobs.data)
}

func TestEvaluationServiceDeleteSchedulesBlobRemoval(t *testing.T) {
	key := "evaluations/e1/evidence-1.png"
	f := newEvaluationFixture(models.Evaluation{ID: "e1", TeacherID: "1", EvidenceImageKey: &key})

	require.NoError(t, f.svc.Delete(context.Background(), "e1"))
	assert.NotContains(t, f.repo.items, "e1")
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, key, f.queue.jobs[0].Payload)
	assert.Equal(t, 1, f.stats.calls)

	err := f.svc.Delete(context.Background(), "e1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEvaluationServiceStatusForTeachers(t *testing.T) {
	var evaluations []models.Evaluation
	evaluations = append(evaluations,
		models.Evaluation{ID: "a", TeacherID: "t0", Date: "2024-01-10"},
		models.Evaluation{ID: "b", TeacherID: "t0", Date: "2024-03-01"},
		models.Evaluation{ID: "c", TeacherID: "t11", Date: "2024-02-01"},
	)
	f := newEvaluationFixture(evaluations...)

	ids := make([]string, 0, 13)
	for i := 0; i < 12; i++ {
		ids = append(ids, fmt.Sprintf("t%d", i))
	}
	ids = append(ids, "t0", "")

	status, err := f.svc.StatusForTeachers(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, status, 12)
	require.Len(t, f.repo.dateCalls, 2)
	assert.Len(t, f.repo.dateCalls[0], 10)
	assert.Len(t, f.repo.dateCalls[1], 2)

	assert.Equal(t, 2, status["t0"].EvaluationCount)
	require.NotNil(t, status["t0"].LastEvaluationDate)
	assert.Equal(t, "2024-03-01", *status["t0"].LastEvaluationDate)
	assert.True(t, status["t11"].HasEvaluations)
	assert.False(t, status["t5"].HasEvaluations)
	assert.Nil(t, status["t5"].LastEvaluationDate)
}

func TestEvaluationServiceEvidenceLinkRoundTrip(t *testing.T) {
	key := "evaluations/e1/evidence-1.png"
	f := newEvaluationFixture(
		models.Evaluation{ID: "e1", TeacherID: "1", EvidenceImageKey: &key},
		models.Evaluation{ID: "e2", TeacherID: "1"},
	)
	blob := pngBytes(t, 2, 2)
	f.blobs.data[key] = blob

	link, err := f.svc.EvidenceLink(context.Background(), "e1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "/api/v1/evidence/download?token="))

	parsed, err := url.Parse(link.URL)
	require.NoError(t, err)
	data, mime, err := f.svc.OpenEvidence(parsed.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, blob, data)
	assert.Equal(t, "image/png", mime)

	_, _, err = f.svc.OpenEvidence("e1.123.abc.bad")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.EvidenceLink(context.Background(), "e2")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	delete(f.blobs.data, key)
	_, _, err = f.svc.OpenEvidence(parsed.Query().Get("token"))
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
