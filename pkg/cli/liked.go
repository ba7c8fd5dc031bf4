package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"github.com/urfave/cli/v3"
)

func likedCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "liked",
		Usage: "List the liked ideas of a user",
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

			doc, err := repo.GetUser(ctx, model.UserID(cfg.userID))
			if err != nil {
				return goerr.Wrap(err, "failed to load user")
			}

			out := c.Root().Writer
			if len(doc.LikedIdeas) == 0 {
				fmt.Fprintf(out, "No liked ideas yet.\n")
				return nil
			}

			for _, idea := range doc.LikedIdeas {
				fmt.Fprintf(out, "%-24s %4.1f  %s\n", idea.Name, idea.Rating, idea.Category)
			}
			fmt.Fprintf(out, "\n%d ideas, %d swipes\n", len(doc.LikedIdeas), doc.SwipeCount)
			return nil
		},
	}
}
