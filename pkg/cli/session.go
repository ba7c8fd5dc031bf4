package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"github.com/m-mizutani/idearoulette/pkg/usecase/session"
	"github.com/urfave/cli/v3"
)

func sessionCommand() *cli.Command {
	var cfg config

	flags := append(globalFlags(&cfg), storageFlags(&cfg)...)

	return &cli.Command{
		Name:      "session",
		Usage:     "Show an archived session export",
		ArgsUsage: "<session-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			id := c.Args().First()
			if id == "" {
				return goerr.New("session-id is required")
			}

			archive, err := cfg.newArchive(ctx)
			if err != nil {
				return err
			}

			export, err := session.LoadExport(ctx, archive, model.SessionID(id))
			if err != nil {
				return goerr.Wrap(err, "failed to load session export")
			}

			out := c.Root().Writer
			s := export.Session
			fmt.Fprintf(out, "Session %s (user %s)\n", s.SessionID, s.UserID)
			fmt.Fprintf(out, "Started %s", s.StartTime.Format(time.RFC3339))
			if s.EndTime != nil {
				fmt.Fprintf(out, ", ended %s (%ds)", s.EndTime.Format(time.RFC3339), s.DurationSec)
			}
			fmt.Fprintf(out, "\n%d views, %d likes, %d remixes, %d shares\n\n",
				s.IdeasViewed, s.IdeasLiked, s.IdeasRemixed, s.IdeasShared)

			for _, entry := range export.Interactions {
				fmt.Fprintf(out, "%s  %-7s %s\n",
					entry.Timestamp.Format("15:04:05"), entry.Action, entry.IdeaName)
			}
			return nil
		},
	}
}
