package syncerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindIsMatchedThroughWrapping(t *testing.T) {
	err := fmt.Errorf("querying project failed: %w", New(KindTransport, context.DeadlineExceeded))

	assert.ErrorIs(t, err, KindTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, KindGraphQL)

	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindTransport, apiErr.Kind)
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "project not found", NewWithoutCause(KindProjectNotFound).Error())
	assert.Equal(
		t,
		"github api returned graphql errors: Could not resolve to an Organization",
		New(KindGraphQL, errors.New("Could not resolve to an Organization")).Error(),
	)
}
