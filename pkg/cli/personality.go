package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"github.com/urfave/cli/v3"
)

func personalityCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "personality",
		Usage: "Show the founder personality of a user",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			if cfg.userID == "" {
				return goerr.New("user-id is required")
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			return printPersonality(ctx, c.Root().Writer, repo, model.UserID(cfg.userID))
		},
	}
}
