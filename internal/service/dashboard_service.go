package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teacher-eval-api/internal/dto"
	"github.com/noah-isme/teacher-eval-api/internal/models"
	appErrors "github.com/noah-isme/teacher-eval-api/pkg/errors"
)

const (
	dashboardCacheKey     = "dashboard:stats"
	dashboardCachePattern = "dashboard:*"
	recentEvaluationLimit = 5
	topPerformerLimit     = 5
)

type teacherLister interface {
	ListAll(ctx context.Context) ([]models.Teacher, error)
}

type evaluationLister interface {
	ListAll(ctx context.Context) ([]models.Evaluation, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService computes coverage and ranking statistics.
type DashboardService struct {
	teachers    teacherLister
	evaluations evaluationLister
	cache       *CacheService
	logger      *zap.Logger
	now         func() time.Time
	cfg         DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Teachers    teacherLister
	Evaluations evaluationLister
	Cache       *CacheService
	Logger      *zap.Logger
	Config      DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		teachers:    params.Teachers,
		evaluations: params.Evaluations,
		cache:       params.Cache,
		logger:      logger,
		now:         time.Now,
		cfg:         cfg,
	}
}

// Stats returns dashboard statistics and indicates whether they came from cache.
func (s *DashboardService) Stats(ctx context.Context) (*dto.DashboardStats, bool, error) {
	if s.cache != nil {
		var cached dto.DashboardStats
		hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		} else if hit {
			return &cached, true, nil
		}
	}

	teachers, err := s.teachers.ListAll(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	evaluations, err := s.evaluations.ListAll(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluations")
	}

	stats := Compute(teachers, evaluations)
	stats.GeneratedAt = s.now().UTC()

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, stats, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return &stats, false, nil
}

// Invalidate drops cached statistics.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s == nil || s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		s.logger.Warn("dashboard cache invalidate failed", zap.Error(err))
	}
}

// Compute derives dashboard statistics from full teacher and evaluation snapshots.
func Compute(teachers []models.Teacher, evaluations []models.Evaluation) dto.DashboardStats {
	byID := make(map[string]models.Teacher, len(teachers))
	for _, t := range teachers {
		byID[t.ID] = t
	}

	evaluated := make(map[string]bool)
	for _, e := range evaluations {
		evaluated[e.TeacherID] = true
	}

	stats := dto.DashboardStats{
		TotalTeachers:               len(teachers),
		TotalEvaluations:            len(evaluations),
		EvaluatedTeachers:           len(evaluated),
		CourseDistribution:          map[string]int{},
		EvaluatedCourseDistribution: map[string]dto.CourseCoverage{},
		RecentEvaluations:           []dto.EvaluationWithTeacher{},
		TopPerformingTeachers:       []dto.TopPerformer{},
	}
	stats.NotEvaluatedTeachers = stats.TotalTeachers - stats.EvaluatedTeachers
	if stats.TotalTeachers > 0 {
		stats.EvaluationPercentage = float64(stats.EvaluatedTeachers) / float64(stats.TotalTeachers) * 100
	}
	if stats.EvaluatedTeachers > 0 {
		stats.AverageEvaluationsPerTeacher = float64(stats.TotalEvaluations) / float64(stats.EvaluatedTeachers)
	}

	for _, t := range teachers {
		course := string(t.Course)
		stats.CourseDistribution[course]++
		coverage := stats.EvaluatedCourseDistribution[course]
		coverage.Total++
		if evaluated[t.ID] {
			coverage.Evaluated++
		}
		stats.EvaluatedCourseDistribution[course] = coverage
	}

	recent := make([]models.Evaluation, len(evaluations))
	copy(recent, evaluations)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Date > recent[j].Date })
	if len(recent) > recentEvaluationLimit {
		recent = recent[:recentEvaluationLimit]
	}
	for _, e := range recent {
		if t, ok := byID[e.TeacherID]; ok {
			stats.RecentEvaluations = append(stats.RecentEvaluations, dto.EvaluationWithTeacher{Evaluation: e, Teacher: t})
		}
	}

	latest := make(map[string]models.Evaluation)
	var order []string
	for _, e := range evaluations {
		current, seen := latest[e.TeacherID]
		if !seen {
			order = append(order, e.TeacherID)
		}
		if !seen || e.Date > current.Date {
			latest[e.TeacherID] = e
		}
	}
	for _, teacherID := range order {
		t, ok := byID[teacherID]
		if !ok {
			continue
		}
		e := latest[teacherID]
		stats.TopPerformingTeachers = append(stats.TopPerformingTeachers, dto.TopPerformer{Teacher: t, Evaluation: e, TotalScore: e.TotalScore()})
	}
	sort.SliceStable(stats.TopPerformingTeachers, func(i, j int) bool {
		return stats.TopPerformingTeachers[i].TotalScore > stats.TopPerformingTeachers[j].TotalScore
	})
	if len(stats.TopPerformingTeachers) > topPerformerLimit {
		stats.TopPerformingTeachers = stats.TopPerformingTeachers[:topPerformerLimit]
	}

	return stats
}
