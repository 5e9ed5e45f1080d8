package models

import (
	"time"

	"github.com/noah-isme/teacher-eval-api/internal/rubric"
)

// Evaluation is one classroom observation scored against the rubric.
type Evaluation struct {
	ID                     string       `db:"id" json:"id"`
	TeacherID              string       `db:"teacher_id" json:"teacher_id"`
	EvaluatorID            string       `db:"evaluator_id" json:"evaluator_id"`
	EvaluatorName          string       `db:"evaluator_name" json:"evaluator_name"`
	Date                   string       `db:"date" json:"date"`
	Time                   string       `db:"time" json:"time"`
	ReflectiveDialogueDate *string      `db:"reflective_dialogue_date" json:"reflective_dialogue_date"`
	ReflectiveDialogueTime *string      `db:"reflective_dialogue_time" json:"reflective_dialogue_time"`
	EvidenceImageKey       *string      `db:"evidence_image_key" json:"evidence_image_key"`
	EvidenceImageBase64    *string      `db:"evidence_image_base64" json:"-"`
	Performance1           rubric.Level `db:"performance1" json:"performance1"`
	Performance2           rubric.Level `db:"performance2" json:"performance2"`
	Performance3           rubric.Level `db:"performance3" json:"performance3"`
	Performance4           rubric.Level `db:"performance4" json:"performance4"`
	Performance5           rubric.Level `db:"performance5" json:"performance5"`
	Performance6           rubric.Level `db:"performance6" json:"performance6"`
	Observations           string       `db:"observations" json:"observations"`
	Strengths              string       `db:"strengths" json:"strengths"`
	ImprovementAreas       string       `db:"improvement_areas" json:"improvement_areas"`
	Commitments            string       `db:"commitments" json:"commitments"`
	CreatedAt              time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time    `db:"updated_at" json:"updated_at"`
}

// Levels returns the six rubric levels in dimension order.
func (e Evaluation) Levels() rubric.Levels {
	return rubric.Levels{e.Performance1, e.Performance2, e.Performance3, e.Performance4, e.Performance5, e.Performance6}
}

// TotalScore sums the level values of the six dimensions.
func (e Evaluation) TotalScore() int {
	return rubric.TotalScore(e.Levels())
}

// HasEvidence reports whether an evidence image was uploaded.
func (e Evaluation) HasEvidence() bool {
	return e.EvidenceImageKey != nil && *e.EvidenceImageKey != ""
}

// HasEmbeddableEvidence reports whether the base64 copy is available for documents.
func (e Evaluation) HasEmbeddableEvidence() bool {
	return e.EvidenceImageBase64 != nil && *e.EvidenceImageBase64 != ""
}

// EvaluationInput is the payload for creating or updating an evaluation.
// Missing performance levels default to level I.
type EvaluationInput struct {
	TeacherID              string  `json:"teacher_id" validate:"required"`
	EvaluatorID            string  `json:"evaluator_id"`
	EvaluatorName          string  `json:"evaluator_name"`
	Date                   string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time                   string  `json:"time" validate:"required,datetime=15:04"`
	ReflectiveDialogueDate *string `json:"reflective_dialogue_date" validate:"omitempty,datetime=2006-01-02"`
	ReflectiveDialogueTime *string `json:"reflective_dialogue_time" validate:"omitempty,datetime=15:04"`
	Performance1           string  `json:"performance1" validate:"omitempty,level"`
	Performance2           string  `json:"performance2" validate:"omitempty,level"`
	Performance3           string  `json:"performance3" validate:"omitempty,level"`
	Performance4           string  `json:"performance4" validate:"omitempty,level"`
	Performance5           string  `json:"performance5" validate:"omitempty,level"`
	Performance6           string  `json:"performance6" validate:"omitempty,level"`
	Observations           string  `json:"observations"`
	Strengths              string  `json:"strengths"`
	ImprovementAreas       string  `json:"improvement_areas"`
	Commitments            string  `json:"commitments"`
}

// EvidenceUpload carries a raw evidence image received with an evaluation.
type EvidenceUpload struct {
	Filename string
	Data     []byte
}

// Actor identifies the authenticated caller performing a write.
type Actor struct {
	ID   string
	Name string
}

// EvaluationStatus summarises a teacher's evaluations for list badges.
type EvaluationStatus struct {
	HasEvaluations     bool    `json:"has_evaluations"`
	EvaluationCount    int     `json:"evaluation_count"`
	LastEvaluationDate *string `json:"last_evaluation_date,omitempty"`
}
