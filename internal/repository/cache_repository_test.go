package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/teacher-eval-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "teval:", nil)
	ctx := context.Background()

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "dashboard:stats", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "dashboard:stats", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "dashboard:*"))
	assert.NoError(t, repo.Close())
	assert.Equal(t, "teval:dashboard:stats", repo.key("dashboard:stats"))
}
