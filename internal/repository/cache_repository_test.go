package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/olimpiada-registration-api/internal/models"
	appErrors "github.com/noah-isme/olimpiada-registration-api/pkg/errors"
)

func TestCacheRepositoryWithoutClientAlwaysMisses(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest []models.OfferingListing
	err := repo.Get(context.Background(), "olimpiada:offerings:conv-1", &dest)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", dest, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "olimpiada:*"))
	assert.NoError(t, repo.Ping(context.Background()))
}
