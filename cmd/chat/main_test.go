package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genius-backend/internal/middleware"
	"genius-backend/internal/models"
)

func TestResolveToken_ExplicitTokenWins(t *testing.T) {
	got, err := resolveToken("given", "secret", "u1", models.PlanFree)
	require.NoError(t, err)
	assert.Equal(t, "given", got)
}

func TestResolveToken_MintsDevToken(t *testing.T) {
	got, err := resolveToken("", "secret", "u1", models.PlanPro)
	require.NoError(t, err)

	identity, err := middleware.NewJWTAuth("secret").ParseToken(got)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, models.PlanPro, identity.Plan)
}

func TestResolveToken_NoTokenNoSecret(t *testing.T) {
	_, err := resolveToken("", "", "u1", models.PlanFree)
	assert.Error(t, err)
}
