package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"github.com/m-mizutani/idearoulette/pkg/repository"
	"github.com/m-mizutani/idearoulette/pkg/usecase/feed"
	"github.com/m-mizutani/idearoulette/pkg/usecase/profile"
	"github.com/urfave/cli/v3"
)

func swipeCommand() *cli.Command {
	var (
		cfg       config
		threshold int64
		batchSize int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "prefetch-threshold",
			Usage:       "Remaining cards that trigger a prefetch",
			Value:       5,
			Sources:     cli.EnvVars("IDEAROULETTE_PREFETCH_THRESHOLD"),
			Destination: &threshold,
		},
		&cli.IntFlag{
			Name:        "batch-size",
			Usage:       "Ideas requested per prefetch",
			Value:       15,
			Sources:     cli.EnvVars("IDEAROULETTE_BATCH_SIZE"),
			Destination: &batchSize,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "swipe",
		Usage: "Interactive idea feed in the terminal",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			userID := model.UserID(cfg.userID)
			if userID == "" {
				if !cfg.local {
					return goerr.New("user-id is required")
				}
				userID = "local-user"
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			if err := repo.EnsureUser(ctx, userID, cfg.userName); err != nil {
				return goerr.Wrap(err, "failed to ensure user")
			}

			gen, err := cfg.newGenerator(ctx)
			if err != nil {
				return err
			}

			rec, err := cfg.newRecorder(ctx, repo)
			if err != nil {
				return err
			}

			out := c.Root().Writer

			if err := runOnboarding(ctx, out, repo, userID); err != nil {
				return err
			}

			if err := rec.Start(ctx, userID, model.ClientInfo{
				Device: "terminal",
				OS:     runtime.GOOS,
			}); err != nil {
				return goerr.Wrap(err, "failed to start session")
			}

			agg := profile.New(repo)
			f := feed.New(repo, gen, agg, rec, userID,
				feed.WithPrefetchThreshold(int(threshold)),
				feed.WithBatchSize(int(batchSize)),
				feed.WithNotify(func(msg string) {
					fmt.Fprintf(out, "\n[!] %s\n", msg)
				}),
			)

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " spinning the roulette..."
			sp.Start()
			err = f.Load(ctx)
			sp.Stop()
			if err != nil {
				return goerr.Wrap(err, "failed to load feed")
			}

			defer func() {
				f.Flush()
				if err := rec.End(ctx); err != nil {
					fmt.Fprintf(out, "failed to close session: %v\n", err)
				}
			}()

			return swipeLoop(ctx, out, repo, f, userID, sp)
		},
	}
}

// runOnboarding asks for interests on first use and seeds the preference
// profile with them
func runOnboarding(ctx context.Context, out io.Writer, repo repository.Repository, userID model.UserID) error {
	doc, err := repo.GetUser(ctx, userID)
	if err != nil {
		return goerr.Wrap(err, "failed to load user")
	}
	if doc.OnboardingCompleted {
		return nil
	}

	rl, err := readline.New("interests (comma separated, blank to skip): ")
	if err != nil {
		return goerr.Wrap(err, "failed to open prompt")
	}
	defer rl.Close()

	fmt.Fprintf(out, "Welcome to IdeaRoulette. Tell us what you are into.\n")
	line, err := rl.Readline()
	if err != nil && err != readline.ErrInterrupt && err != io.EOF {
		return goerr.Wrap(err, "failed to read interests")
	}

	var interests []string
	for _, field := range strings.Split(line, ",") {
		if v := strings.TrimSpace(field); v != "" {
			interests = append(interests, v)
		}
	}
	if len(interests) > 0 {
		if err := repo.SetInterests(ctx, userID, interests); err != nil {
			return goerr.Wrap(err, "failed to save interests")
		}
	}
	if err := repo.SetOnboardingCompleted(ctx, userID, true); err != nil {
		return goerr.Wrap(err, "failed to mark onboarding")
	}
	return nil
}

func swipeLoop(ctx context.Context, out io.Writer, repo repository.Repository, f *feed.Feed, userID model.UserID, sp *spinner.Spinner) error {
	rl, err := readline.New("roulette> ")
	if err != nil {
		return goerr.Wrap(err, "failed to open prompt")
	}
	defer rl.Close()

	printCard(out, f)
	printHelp(out)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read command")
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		switch cmd {
		case "", "next", "n":
			if !f.Advance(ctx) {
				fmt.Fprintf(out, "No more ideas yet, hang on...\n")
				continue
			}
			printCard(out, f)

		case "prev", "p":
			if !f.Retreat(ctx) {
				fmt.Fprintf(out, "Already at the first idea.\n")
				continue
			}
			printCard(out, f)

		case "like", "l":
			liked, err := f.LikeCurrent(ctx)
			if err != nil {
				fmt.Fprintf(out, "like failed: %v\n", err)
				continue
			}
			if liked {
				fmt.Fprintf(out, "Liked %s\n", f.Current().Name)
			} else {
				fmt.Fprintf(out, "Unliked %s\n", f.Current().Name)
			}

		case "remix", "r":
			runRemix(ctx, out, f, false, sp)

		case "remix!", "R":
			runRemix(ctx, out, f, true, sp)

		case "share", "s":
			if err := f.ShareCurrent(ctx); err != nil {
				fmt.Fprintf(out, "share failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Shared %s\n", f.Current().Name)

		case "expand", "e":
			if err := f.ExpandCurrent(ctx); err != nil {
				fmt.Fprintf(out, "expand failed: %v\n", err)
				continue
			}
			printDetail(out, f.Current())

		case "open", "o":
			if arg == "" {
				fmt.Fprintf(out, "usage: open <idea name>\n")
				continue
			}
			idea := findIdea(f, arg)
			if idea == nil {
				fmt.Fprintf(out, "No idea named %q in the deck.\n", arg)
				continue
			}
			f.SelectIdea(ctx, idea)
			printCard(out, f)

		case "personality":
			if err := printPersonality(ctx, out, repo, userID); err != nil {
				fmt.Fprintf(out, "personality failed: %v\n", err)
			}

		case "help", "h", "?":
			printHelp(out)

		case "quit", "q", "exit":
			fmt.Fprintf(out, "See you.\n")
			return nil

		default:
			fmt.Fprintf(out, "Unknown command %q. Type 'help'.\n", cmd)
		}
	}
}

func runRemix(ctx context.Context, out io.Writer, f *feed.Feed, full bool, sp *spinner.Spinner) {
	sp.Suffix = " remixing..."
	sp.Start()
	result, err := f.RemixCurrent(ctx, full)
	sp.Stop()

	if errors.Is(err, feed.ErrRemixInFlight) {
		fmt.Fprintf(out, "A remix is already running for this idea.\n")
		return
	}
	if err != nil {
		fmt.Fprintf(out, "remix failed: %v\n", err)
		return
	}

	if result.IsTitles() {
		fmt.Fprintf(out, "Remix ideas:\n")
		for _, title := range result.Titles {
			fmt.Fprintf(out, "  - %s\n", title)
		}
		return
	}
	fmt.Fprintf(out, "Spliced %d remixed ideas into the feed.\n", len(result.Ideas))
}

func findIdea(f *feed.Feed, name string) *model.Idea {
	for _, idea := range f.Ideas() {
		if strings.EqualFold(idea.Name, name) {
			return idea
		}
	}
	return nil
}

func printCard(out io.Writer, f *feed.Feed) {
	idea := f.Current()
	if idea == nil {
		fmt.Fprintf(out, "The feed is empty.\n")
		return
	}

	like := " "
	if f.IsLiked(idea.Name) {
		like = "*"
	}
	fmt.Fprintf(out, "\n[%d/%d] %s %s (%.1f) — %s\n", f.Cursor()+1, f.Len(), like, idea.Name, idea.Rating, idea.Category)
	fmt.Fprintf(out, "    %s\n", idea.Tagline)
}

func printDetail(out io.Writer, idea *model.Idea) {
	if idea == nil {
		return
	}
	fmt.Fprintf(out, "\n%s — %s\n", idea.Name, idea.Tagline)
	fmt.Fprintf(out, "Category: %s  Rating: %.1f\n", idea.Category, idea.Rating)
	fmt.Fprintf(out, "Tags: %s\n", strings.Join(idea.Tags, ", "))
	fmt.Fprintf(out, "%s\n", idea.Description)
	if len(idea.Remixes) > 0 {
		fmt.Fprintf(out, "Remixes: %s\n", strings.Join(idea.Remixes, ", "))
	}
}

func printPersonality(ctx context.Context, out io.Writer, repo repository.Repository, userID model.UserID) error {
	doc, err := repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !doc.PersonalityUnlocked {
		fmt.Fprintf(out, "Keep swiping to unlock your founder personality.\n")
		return nil
	}

	p := profile.DerivePersonality(doc.Preferences, doc.SwipeCount, int64(len(doc.LikedIdeas)))
	fmt.Fprintf(out, "Your founder personality: %s\n", p)
	return nil
}

func printHelp(out io.Writer) {
	fmt.Fprint(out, `
commands:
  next (n, enter)  show the next idea
  prev (p)         go back one idea
  like (l)         toggle like on the current idea
  remix (r)        generate remix titles for the current idea
  remix! (R)       generate full remixed ideas and splice them in
  share (s)        share the current idea
  expand (e)       show the full card
  open <name>      jump to an idea in the deck by name
  personality      show your founder personality
  quit (q)         leave
`)
}
