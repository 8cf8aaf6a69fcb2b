package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Flankrr/pvo-limburg/config"
	"github.com/Flankrr/pvo-limburg/feeds"
	"github.com/Flankrr/pvo-limburg/fetch"
	"github.com/Flankrr/pvo-limburg/ingest"
	"github.com/Flankrr/pvo-limburg/police"
	"github.com/Flankrr/pvo-limburg/state"
)

const dateLayout = "2006-01-02"

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(getEnv("PVO_CONFIG", "pvo.yaml"))
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		handleRun(cfg, os.Args[2:])
	case "feeds":
		handleFeeds(cfg, os.Args[2:])
	case "police":
		handlePolice(cfg, os.Args[2:])
	case "sources":
		handleSources(cfg)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// handleRun sequences every enabled source: each feed, then the police
// incremental update. One source failing degrades the run and the exit
// status, not the sources after it.
func handleRun(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Show debug output")
	fs.Parse(args)
	applyVerbose(*verbose)

	client, st := buildStack(cfg)
	if st != nil {
		defer st.Close()
	}

	var steps []ingest.Step
	for _, fc := range cfg.EnabledFeeds() {
		steps = append(steps, ingest.Adapt(newFeedAdapter(fc, cfg, client), log.Logger))
	}
	if cfg.Police.IsEnabled() {
		pc := newPoliceClient(cfg, client)
		steps = append(steps, pc.UpdateStep(cfg.Police.Output, anchorStore(st)))
	}

	runSteps(steps, st)
}

// handleFeeds runs the feed sources only, optionally restricted to one
// source by name, or lists the configured sources.
func handleFeeds(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("feeds", flag.ExitOnError)
	source := fs.String("source", "", "Run only the named source")
	list := fs.Bool("list", false, "List configured sources and exit")
	verbose := fs.Bool("verbose", false, "Show debug output")
	fs.Parse(args)
	applyVerbose(*verbose)

	if *list {
		for _, fc := range cfg.Feeds {
			status := "enabled"
			if !fc.IsEnabled() {
				status = "disabled"
			}
			fmt.Printf("%-10s %s\n           %s\n", status, fc.Name, fc.URL)
		}
		return
	}

	selected := cfg.EnabledFeeds()
	if *source != "" {
		fc, ok := cfg.FindFeed(*source)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: source %q not found in configuration\n", *source)
			os.Exit(1)
		}
		selected = []config.FeedConfig{fc}
	}

	client, st := buildStack(cfg)
	if st != nil {
		defer st.Close()
	}

	var steps []ingest.Step
	for _, fc := range selected {
		steps = append(steps, ingest.Adapt(newFeedAdapter(fc, cfg, client), log.Logger))
	}
	runSteps(steps, st)
}

// handlePolice runs the paginated API source in one of its two modes:
// a full backfill over an explicit date range, or an incremental update
// from the persisted anchor.
func handlePolice(cfg *config.Config, args []string) {
	if len(args) < 1 {
		printPoliceUsage()
		os.Exit(1)
	}

	mode := args[0]
	fs := flag.NewFlagSet("police "+mode, flag.ExitOnError)
	from := fs.String("from", "", "Start date (YYYY-MM-DD), backfill only")
	to := fs.String("to", "", "End date (YYYY-MM-DD), backfill only")
	verbose := fs.Bool("verbose", false, "Show debug output")
	fs.Parse(args[1:])
	applyVerbose(*verbose)

	client, st := buildStack(cfg)
	if st != nil {
		defer st.Close()
	}
	pc := newPoliceClient(cfg, client)

	switch mode {
	case "backfill":
		fromDate, err := time.Parse(dateLayout, *from)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid -from date: %v\n", err)
			os.Exit(1)
		}
		toDate, err := time.Parse(dateLayout, *to)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid -to date: %v\n", err)
			os.Exit(1)
		}
		src := pc.RangeSource(fromDate, toDate, cfg.Police.Output)
		runSteps([]ingest.Step{ingest.Adapt(src, log.Logger)}, st)
	case "update":
		runSteps([]ingest.Step{pc.UpdateStep(cfg.Police.Output, anchorStore(st))}, st)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown police mode: %s\n\n", mode)
		printPoliceUsage()
		os.Exit(1)
	}
}

// handleSources prints the recorded per-source run state.
func handleSources(cfg *config.Config) {
	st, err := state.Open(cfg.StateDB)
	if err != nil {
		log.Error().Err(err).Msg("failed to open state store")
		os.Exit(1)
	}
	defer st.Close()

	states, err := st.ListSources()
	if err != nil {
		log.Error().Err(err).Msg("failed to list source state")
		os.Exit(1)
	}
	if len(states) == 0 {
		fmt.Println("No recorded runs yet.")
		return
	}

	for _, s := range states {
		lastRun := "never"
		if s.LastRunAt != nil {
			lastRun = s.LastRunAt.Format(time.RFC3339)
		}
		fmt.Printf("%s\n  last run: %s  fetched: %d  added: %d  skipped: %d  errors: %d\n",
			s.Name, lastRun, s.Fetched, s.Added, s.Skipped, s.ErrorCount)
		if s.LastError != nil {
			fmt.Printf("  last error: %s\n", *s.LastError)
		}
	}
}

func runSteps(steps []ingest.Step, st *state.Store) {
	orch := ingest.New(log.Logger, st, steps...)
	if _, err := orch.Run(context.Background()); err != nil {
		os.Exit(1)
	}
}

func buildStack(cfg *config.Config) (*fetch.Client, *state.Store) {
	client := fetch.New(cfg.RequestTimeout.Std())
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}

	if cfg.StateDB == "" {
		return client, nil
	}
	st, err := state.Open(cfg.StateDB)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.StateDB).Msg("state store unavailable, continuing without it")
		return client, nil
	}
	return client, st
}

func newFeedAdapter(fc config.FeedConfig, cfg *config.Config, client *fetch.Client) *feeds.Adapter {
	return feeds.New(feeds.Config{
		Name:     fc.Name,
		URL:      fc.URL,
		Target:   fc.Output,
		MaxItems: fc.MaxItems,
		Delay:    cfg.RequestDelay.Std(),
	}, client, log.Logger)
}

func newPoliceClient(cfg *config.Config, client *fetch.Client) *police.Client {
	return police.New(police.Config{
		BaseURL:     cfg.Police.BaseURL,
		Language:    cfg.Police.Language,
		PageSize:    cfg.Police.PageSize,
		WindowDays:  cfg.Police.WindowDays,
		WindowDelay: cfg.Police.WindowDelay.Std(),
	}, client, log.Logger)
}

// anchorStore keeps a nil *state.Store from turning into a non-nil
// interface value.
func anchorStore(st *state.Store) police.AnchorStore {
	if st == nil {
		return nil
	}
	return st
}

func applyVerbose(verbose bool) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func printUsage() {
	fmt.Println("pvo-ingest - PVO Limburg news ingestion pipeline")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pvo-ingest <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run        Run every enabled source (feeds + police update)")
	fmt.Println("  feeds      Run or list the RSS/Atom sources")
	fmt.Println("  police     Run the police API source (backfill or update)")
	fmt.Println("  sources    Show recorded per-source run state")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  PVO_CONFIG      Path to config file (default: pvo.yaml)")
	fmt.Println("  PVO_STATE_DB    Path to state database (overrides config)")
	fmt.Println("  PVO_USER_AGENT  User-Agent for outbound requests")
}

func printPoliceUsage() {
	fmt.Println("pvo-ingest police - Run the police API source")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pvo-ingest police backfill -from YYYY-MM-DD -to YYYY-MM-DD")
	fmt.Println("  pvo-ingest police update")
}
