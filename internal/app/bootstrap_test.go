package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate/entities/models"

	"textvault/internal/app"
	"textvault/internal/config"
)

// flakySchemaClient fails ClassExists a configurable number of times before
// behaving like an empty Weaviate instance.
type flakySchemaClient struct {
	callCount int
	failUntil int
	created   *models.Class
}

func (c *flakySchemaClient) ClassExists(ctx context.Context, className string) (bool, error) {
	c.callCount++
	if c.callCount <= c.failUntil {
		return false, errors.New("connection refused")
	}
	return false, nil
}

func (c *flakySchemaClient) CreateClass(ctx context.Context, class *models.Class) error {
	c.created = class
	return nil
}

func (c *flakySchemaClient) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return nil, errors.New("not found")
}

func (c *flakySchemaClient) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return nil
}

func TestEnsureSchemaWithRetry_Success(t *testing.T) {
	client := &flakySchemaClient{}
	err := app.EnsureSchemaWithRetry(context.Background(), client, "UploadChunk", 1, 1*time.Millisecond)
	assert.NoError(t, err)
	assert.NotNil(t, client.created)
}

func TestEnsureSchemaWithRetry_Retries(t *testing.T) {
	client := &flakySchemaClient{failUntil: 2}
	err := app.EnsureSchemaWithRetry(context.Background(), client, "UploadChunk", 5, 1*time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 3, client.callCount)
}

func TestEnsureSchemaWithRetry_Fail(t *testing.T) {
	client := &flakySchemaClient{failUntil: 100}
	err := app.EnsureSchemaWithRetry(context.Background(), client, "UploadChunk", 3, 1*time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, 3, client.callCount)
}

func TestBootstrap_ConfigurationError(t *testing.T) {
	cfg := &config.Config{
		DBHost:                 "invalid-host",
		BootstrapRetryAttempts: 1,
	}
	deps, err := app.Bootstrap(context.Background(), cfg)
	assert.Error(t, err)
	assert.Nil(t, deps)
}
