package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"github.com/urfave/cli/v3"
)

func resetCommand() *cli.Command {
	var (
		cfg   config
		force bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "force",
			Aliases:     []string{"f"},
			Usage:       "Skip the confirmation",
			Destination: &force,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "reset",
		Usage: "Wipe all data of a user (likes, preferences, counters)",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			if cfg.userID == "" {
				return goerr.New("user-id is required")
			}

			if !force {
				return goerr.New("refusing to reset without --force")
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			if err := repo.ResetUser(ctx, model.UserID(cfg.userID)); err != nil {
				return goerr.Wrap(err, "failed to reset user")
			}

			fmt.Fprintf(c.Root().Writer, "Reset user %s\n", cfg.userID)
			return nil
		},
	}
}
