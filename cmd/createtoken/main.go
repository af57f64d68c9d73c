package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"axiapac.com/payroll/security"
)

func run(_ context.Context, cmd *cli.Command) error {
	secret := cmd.String("secret")
	if secret == "" {
		return fmt.Errorf("a signing secret is required")
	}

	token, err := security.CreateIdentityToken(&security.User{
		ID:       int(cmd.Int("id")),
		UserName: cmd.String("user"),
		Provider: "local",
		Email:    cmd.String("email"),
	}, secret, cmd.Int("expires"))
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "createtoken",
		Usage:  "Prints a bearer token for the payroll API",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "secret",
				Usage:   "Base64 encoded signing secret",
				Sources: cli.EnvVars("AXIAPAC_SIGNING_SECRET"),
			},
			&cli.StringFlag{Name: "user", Value: "device-id", Usage: "User name claim"},
			&cli.StringFlag{Name: "email", Usage: "Email claim"},
			&cli.IntFlag{Name: "id", Value: 1, Usage: "User id claim"},
			&cli.IntFlag{Name: "expires", Value: 3600, Usage: "Lifetime in seconds"},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("createtoken failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
