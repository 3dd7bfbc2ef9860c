package token

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/askbox/internal/security"
	"github.com/urfave/cli/v3"
)

// Command returns the token sub-command, which mints HS256 bearer tokens for
// local development against a server sharing the same secret.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint a signed bearer token for a member",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "uid",
				Usage:    "Member uid placed in the token subject",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "secret",
				Sources:  cli.EnvVars("ASKBOX_AUTH_JWT_SECRET"),
				Usage:    "HS256 signing secret",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime",
				Value: 24 * time.Hour,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			token, err := security.SignToken(cmd.String("uid"), []byte(cmd.String("secret")), cmd.Duration("ttl"))
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.Root().Writer, token)
			return err
		},
	}
}
