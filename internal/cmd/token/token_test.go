package token

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/chirino/askbox/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func TestTokenCommand(t *testing.T) {
	var out bytes.Buffer
	app := &cli.Command{
		Name:     "askbox",
		Writer:   &out,
		Commands: []*cli.Command{Command()},
	}

	err := app.Run(context.Background(), []string{"askbox", "token", "--uid", "u1", "--secret", "s3cret", "--ttl", "1h"})
	require.NoError(t, err)

	uid, err := security.ParseToken(strings.TrimSpace(out.String()), []byte("s3cret"))
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	_, err = security.ParseToken(strings.TrimSpace(out.String()), []byte("other"))
	assert.Error(t, err)
}
