package gemini

import (
	"errors"
	"fmt"
	"testing"

	"grading-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

func TestWrapErrorKeepsStatus(t *testing.T) {
	err := wrapError(fmt.Errorf("call: %w", &googleapi.Error{Code: 503, Message: "overloaded"}))

	var apiErr *models.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 503, apiErr.StatusCode)
	assert.True(t, apiErr.Transient())
}

func TestWrapErrorPlain(t *testing.T) {
	err := wrapError(errors.New("boom"))

	var apiErr *models.APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.ErrorContains(t, err, "boom")
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, zap.NewNop())
	assert.Error(t, err)
}
