package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/theimaginaryfoundation/gita-moods/scripture"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		var ce configError
		if errors.As(err, &ce) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// configError marks failures that happen before any work starts (exit status 2).
type configError struct{ error }

func (e configError) Unwrap() error { return e.error }

// app carries the resolved configuration and shared services for one invocation.
type app struct {
	flagged    Config
	configPath string

	cfg    Config
	logger *zap.Logger

	catalog  *scripture.CatalogLoader
	resolver *scripture.Resolver
	searcher *scripture.Searcher

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "gita",
		Short: "Bhagavad Gita verses for how you feel",
		Long: `gita resolves a mood, a chapter/verse reference or a typed query into
Bhagavad Gita verses from a static JSON corpus.

Examples:
  gita moods
  gita mood anxiety
  gita verse 2 47
  gita search "ch.3"
  gita export deep-sadness --out out/deep-sadness.json --pretty`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	registerFlags(root.PersistentFlags(), &a.flagged, &a.configPath)

	root.AddCommand(
		a.moodsCmd(),
		a.moodCmd(),
		a.verseCmd(),
		a.searchCmd(),
		a.watchCmd(),
		a.exportCmd(),
		a.schemaCmd(),
		a.detectCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := resolveConfig(cmd.Flags(), a.flagged, a.configPath)
	if err != nil {
		fmt.Fprintln(a.stderr, err.Error())
		return configError{err}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(a.stderr, err.Error())
		return configError{err}
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(a.stderr, err.Error())
		return configError{err}
	}
	a.logger = logger

	client := &http.Client{Timeout: cfg.HTTPTimeout}
	catalogRoot, catalogDoc := scripture.SplitLocation(cfg.Catalog)
	a.catalog = scripture.NewCatalogLoader(scripture.OpenSource(catalogRoot, client), catalogDoc, logger.Named("catalog"))
	a.resolver = scripture.NewResolver(scripture.OpenSource(cfg.VerseStore, client), a.catalog, scripture.ResolverOptions{
		MaxRetries:         retriesOption(cfg.MaxRetries),
		BackoffUnit:        cfg.Backoff,
		PrimaryCommentator: cfg.PrimaryCommentator,
		Concurrency:        cfg.Concurrency,
		Logger:             logger.Named("resolver"),
	})
	a.searcher = scripture.NewSearcher(scripture.OpenSource(cfg.Lookup, client), logger.Named("search"))
	return nil
}

// retriesOption maps a configured retry count onto ResolverOptions, where 0 means "default".
func retriesOption(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.Sampling = nil
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func (a *app) moodsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "moods",
		Short: "List the moods in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog.Load(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a.stdout, cat)
			}
			for _, m := range cat.Moods {
				fmt.Fprintf(a.stdout, "%-22s %-22s %d verses  %s\n", m.Name, scripture.Slug(m.Name), len(m.Verses), m.Description)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalog as JSON")
	return cmd
}

func (a *app) moodCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "mood <name>",
		Short: "Show the verses curated for a mood",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			res := a.resolver.FetchVersesForMood(cmd.Context(), name)
			if asJSON {
				return writeJSON(a.stdout, newMoodBundle(name, res))
			}
			if res.Mood == nil {
				fmt.Fprintf(a.stderr, "no mood named %q (see: gita moods)\n", name)
				return nil
			}
			fmt.Fprintf(a.stdout, "%s: %s\n\n", res.Mood.Name, res.Mood.Description)
			for _, v := range res.Verses {
				printVerse(a.stdout, v, a.cfg.PrimaryCommentator)
			}
			a.reportFailures(res.Failures)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func (a *app) verseCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "verse <chapter> <verse> | verse <chapter:verse>",
		Short: "Fetch a single verse",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chapter, verse, err := parseVerseArgs(args)
			if err != nil {
				return err
			}
			rec, err := a.resolver.FetchVerse(cmd.Context(), chapter, verse)
			if err != nil {
				return fmt.Errorf("verse %d.%d unavailable (%s): %w", chapter, verse, scripture.Classify(err), err)
			}
			if asJSON {
				return writeJSON(a.stdout, rec)
			}
			printVerse(a.stdout, rec, a.cfg.PrimaryCommentator)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the verse as JSON")
	return cmd
}

func parseVerseArgs(args []string) (int, int, error) {
	if len(args) == 2 {
		c, err1 := strconv.Atoi(args[0])
		v, err2 := strconv.Atoi(args[1])
		if err1 != nil || err2 != nil || c < 1 || v < 1 {
			return 0, 0, fmt.Errorf("invalid verse reference %q %q", args[0], args[1])
		}
		return c, v, nil
	}
	intent := scripture.ParseQuery(args[0])
	if intent.Kind != scripture.IntentVerse || intent.Chapter < 1 || intent.Verse < 1 {
		return 0, 0, fmt.Errorf("invalid verse reference %q (want e.g. 2:47)", args[0])
	}
	return intent.Chapter, intent.Verse, nil
}

func (a *app) searchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search by chapter (\"ch.3\", \"7\") or verse (\"2:47\")",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.searcher.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a.stdout, resp)
			}
			printSearch(a.stdout, resp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the response as JSON")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Search each line typed on stdin after a quiet period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			d := scripture.NewDebouncer(a.cfg.Debounce)
			served := make(chan error, 1)
			go func() {
				served <- a.searcher.Serve(ctx, d, func(resp scripture.SearchResponse) {
					printSearch(a.stdout, resp)
				})
			}()

			sc := bufio.NewScanner(a.stdin)
			for sc.Scan() {
				d.Push(sc.Text())
			}
			// Give the last line time to clear the quiet period before shutting down;
			// Serve waits for searches already in flight.
			_ = sleepCtx(ctx, 2*a.cfg.Debounce)
			d.Close()
			if err := <-served; err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return sc.Err()
		},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *app) exportCmd() *cobra.Command {
	var (
		outPath string
		pretty  bool
	)
	cmd := &cobra.Command{
		Use:   "export <mood>",
		Short: "Write a mood and its resolved verses to a JSON file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			res := a.resolver.FetchVersesForMood(cmd.Context(), name)
			if res.Mood == nil {
				return fmt.Errorf("no mood named %q", name)
			}
			path := outPath
			if path == "" {
				path = scripture.Slug(res.Mood.Name) + ".json"
			}
			if err := writeBundle(path, newMoodBundle(name, res), pretty); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "mood=%s verses=%d missing=%d out=%s\n", res.Mood.Name, len(res.Verses), len(res.Failures), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "Output file (default: <mood-slug>.json)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print the JSON file")
	return cmd
}

func (a *app) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the mood catalog file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := scripture.CatalogJSONSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, string(b))
			return err
		},
	}
}

func (a *app) reportFailures(failures []scripture.VerseFailure) {
	for _, f := range failures {
		fmt.Fprintf(a.stderr, "skipped %d.%d (%s)\n", f.Ref.Chapter, f.Ref.Verse, f.Outcome)
	}
}
