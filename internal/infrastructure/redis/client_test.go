package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyURLDisablesCache(t *testing.T) {
	client, err := New(context.Background(), "")

	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNew_RejectsMalformedURL(t *testing.T) {
	_, err := New(context.Background(), "http://localhost:6379")

	assert.ErrorContains(t, err, "parse redis URL")
}
