package security_test

import (
	"context"
	"testing"
	"time"

	"github.com/chirino/askbox/internal/config"
	"github.com/chirino/askbox/internal/security"
	"github.com/chirino/askbox/internal/testutil/testoidc"
	"github.com/stretchr/testify/require"
)

func TestResolve_OIDC(t *testing.T) {
	provider := testoidc.Start(t)

	cfg := config.DefaultConfig()
	cfg.OIDCIssuer = provider.IssuerURL()
	r := security.NewTokenResolver(&cfg)

	token, err := provider.IssueToken("u-oidc", time.Minute)
	require.NoError(t, err)
	id, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "u-oidc", id.UserID)

	expired, err := provider.IssueToken("u-oidc", -time.Minute)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), expired)
	require.ErrorIs(t, err, security.ErrInvalidToken)

	forged, err := security.SignToken("u-oidc", []byte("guess"), time.Minute)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), forged)
	require.ErrorIs(t, err, security.ErrInvalidToken)
}
