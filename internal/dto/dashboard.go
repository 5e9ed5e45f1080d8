package dto

import (
	"time"

	"github.com/noah-isme/teacher-eval-api/internal/models"
)

// DashboardStats captures coverage and ranking figures for the dashboard.
type DashboardStats struct {
	TotalTeachers                int                       `json:"totalTeachers"`
	TotalEvaluations             int                       `json:"totalEvaluations"`
	EvaluatedTeachers            int                       `json:"evaluatedTeachers"`
	NotEvaluatedTeachers         int                       `json:"notEvaluatedTeachers"`
	EvaluationPercentage         float64                   `json:"evaluationPercentage"`
	AverageEvaluationsPerTeacher float64                   `json:"averageEvaluationsPerTeacher"`
	CourseDistribution           map[string]int            `json:"courseDistribution"`
	EvaluatedCourseDistribution  map[string]CourseCoverage `json:"evaluatedCourseDistribution"`
	RecentEvaluations            []EvaluationWithTeacher   `json:"recentEvaluations"`
	TopPerformingTeachers        []TopPerformer            `json:"topPerformingTeachers"`
	GeneratedAt                  time.Time                 `json:"generatedAt"`
}

// CourseCoverage counts teachers of a course and how many were evaluated.
type CourseCoverage struct {
	Total     int `json:"total"`
	Evaluated int `json:"evaluated"`
}

// EvaluationWithTeacher pairs an evaluation with its owning teacher.
type EvaluationWithTeacher struct {
	Evaluation models.Evaluation `json:"evaluation"`
	Teacher    models.Teacher    `json:"teacher"`
}

// TopPerformer ranks a teacher by the score of their latest evaluation.
type TopPerformer struct {
	Teacher    models.Teacher    `json:"teacher"`
	Evaluation models.Evaluation `json:"evaluation"`
	TotalScore int               `json:"totalScore"`
}
