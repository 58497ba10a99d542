package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/SlokomManel/federated-recommendations-participants/internal/api"
	"github.com/SlokomManel/federated-recommendations-participants/internal/config"
	"github.com/SlokomManel/federated-recommendations-participants/internal/logging"
	"github.com/SlokomManel/federated-recommendations-participants/internal/metrics"
	"github.com/SlokomManel/federated-recommendations-participants/internal/recs"
	"github.com/SlokomManel/federated-recommendations-participants/internal/state"
	"github.com/SlokomManel/federated-recommendations-participants/internal/tui"
	"github.com/SlokomManel/federated-recommendations-participants/internal/workflow"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		usage()
		return errors.New("no command provided")
	}
	switch args[0] {
	case "config":
		return handleConfig(ctx, args[1:])
	case "status":
		return handleStatus(ctx, args[1:])
	case "upload":
		return handleUpload(ctx, args[1:])
	case "refresh":
		return handleRefresh(ctx, args[1:])
	case "recs":
		return handleRecs(ctx, args[1:])
	case "movie":
		return handleMovie(ctx, args[1:])
	case "feedback":
		return handleFeedback(ctx, args[1:])
	case "optout":
		return handleOptOut(ctx, args[1:])
	case "tui":
		return handleTUI(ctx, args[1:])
	case "version":
		fmt.Println(version)
		return nil
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func usage() {
	fmt.Println(strings.TrimSpace(`fedrec - federated recommendations participant client

Usage:
  fedrec <command> [flags]

Commands:
  config init       Write a starter YAML config
  config validate   Validate the YAML config file
  config print      Print the loaded config as JSON
  status            Probe the participant service and print workflow state
  upload FILE       Upload a Netflix viewing history CSV and start training
  refresh           Recompute recommendations (--full retrains first)
  recs              Print the current recommendation lists
  movie ID          Print details for one recommended title
  feedback          Send a 1-5 star rating with an optional message
  optout            Withdraw from the study
  tui               Open the interactive terminal client
  version           Print version
  help              Show this help

Flags:
  --config PATH     Path to YAML config file (or FEDREC_CONFIG env var; default: ~/.config/fedrec/config.yml)
  --log-level L     Log level: debug|info|warn|error (per command)
  --log-format F    Log format: human|json (per command)
`))
}

// commonFlags registers the flags every subcommand shares.
type commonFlags struct {
	cfgPath   *string
	logLevel  *string
	logFormat *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		cfgPath:   fs.String("config", "", "Path to YAML config file"),
		logLevel:  fs.String("log-level", "", "log level (debug|info|warn|error)"),
		logFormat: fs.String("log-format", "", "log format (human|json)"),
	}
}

func (cf commonFlags) load() (*config.Config, zerolog.Logger, error) {
	path := *cf.cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, logging.Nop(), err
	}
	level := c.Logging.Level
	if *cf.logLevel != "" {
		level = *cf.logLevel
	}
	format := c.Logging.Format
	if *cf.logFormat != "" {
		format = *cf.logFormat
	}
	return c, logging.New(level, format), nil
}

func handleConfig(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("config requires a subcommand: init|validate|print")
	}
	sub := args[0]
	fs := flag.NewFlagSet("config "+sub, flag.ContinueOnError)
	cf := addCommonFlags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	path := *cf.cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	switch sub {
	case "init":
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Println("wrote", path)
		return nil
	case "validate":
		if _, err := config.Load(path); err != nil {
			return err
		}
		fmt.Println("ok:", path)
		return nil
	case "print":
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	default:
		return fmt.Errorf("unknown config subcommand: %s", sub)
	}
}

func handleStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	jsonOut := fs.Bool("json", false, "print the combined probe result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, _, err := cf.load()
	if err != nil {
		return err
	}
	client, err := api.New(c)
	if err != nil {
		return err
	}

	// Independent probes; run them concurrently and tolerate partial
	// failure so one broken endpoint does not hide the rest.
	var (
		health *api.HealthResponse
		status *api.StatusResponse
		model  *api.SharedModelInfo
		user   *api.UserResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { health, _ = client.Health(gctx); return nil })
	g.Go(func() error {
		s, err := client.Status(gctx)
		status = s
		return err
	})
	g.Go(func() error { model, _ = client.SharedModelInfo(gctx); return nil })
	g.Go(func() error { user, _ = client.User(gctx); return nil })
	if err := g.Wait(); err != nil {
		return err
	}

	if *jsonOut {
		out := map[string]any{"status": status}
		if health != nil {
			out["health"] = health
		}
		if model != nil {
			out["shared_model"] = model
		}
		if user != nil {
			out["user"] = user
		}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}

	fmt.Println("service:   ", c.Server.BaseURL)
	if user != nil && user.Email != "" {
		fmt.Println("user:      ", user.Email)
	}
	if health != nil {
		fmt.Println("health:    ", health.Status)
	}
	fmt.Println("workflow:  ", status.Status)
	if status.Message != "" {
		fmt.Println("message:   ", status.Message)
	}
	fmt.Println("history:   ", yesNo(status.HasViewingHistory))
	fmt.Println("recs:      ", yesNo(status.HasRecommendations))
	if model != nil {
		if model.Exists {
			fmt.Println("shared model:", model.LastModified)
		} else {
			fmt.Println("shared model: not published yet")
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// cliSink prints machine events and signals when a resting phase is
// reached.
type cliSink struct {
	done chan workflow.Snapshot
	last workflow.Phase
	seen bool
}

func newCLISink() *cliSink {
	return &cliSink{done: make(chan workflow.Snapshot, 1)}
}

func (s *cliSink) PhaseChanged(snap workflow.Snapshot) {
	if !s.seen || snap.Phase != s.last {
		s.seen = true
		s.last = snap.Phase
		msg := snap.Message
		if msg == "" {
			msg = snap.Phase.String()
		}
		fmt.Println("->", snap.Phase.String()+":", msg)
	}
	switch snap.Phase {
	case workflow.PhaseReady, workflow.PhaseNoViewingHistory,
		workflow.PhaseAggregatorWait, workflow.PhaseError:
		select {
		case s.done <- snap:
		default:
		}
	}
}

func (s *cliSink) Toast(msg string) { fmt.Println("  ", msg) }

// runWorkflow drives the machine with a CLI sink and blocks until it
// settles or the context is cancelled.
func runWorkflow(ctx context.Context, c *config.Config, log zerolog.Logger, kick func(*workflow.Machine)) error {
	st, err := state.Open(c)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	client, err := api.New(c)
	if err != nil {
		return err
	}
	met := metrics.New(c)
	sink := newCLISink()
	mach := workflow.New(client, st, sink, c, log, met)
	defer mach.Stop()

	kick(mach)

	var snap workflow.Snapshot
	select {
	case snap = <-sink.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := met.Write(); err != nil {
		log.Warn().Err(err).Msg("write metrics textfile")
	}
	switch snap.Phase {
	case workflow.PhaseError:
		if snap.Friendly != nil {
			return snap.Friendly
		}
		return errors.New(snap.Message)
	case workflow.PhaseNoViewingHistory:
		return errors.New("no viewing history on the service; run: fedrec upload FILE")
	}
	return nil
}

func handleUpload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: fedrec upload FILE")
	}
	path := fs.Arg(0)
	c, log, err := cf.load()
	if err != nil {
		return err
	}
	return runWorkflow(ctx, c, log, func(m *workflow.Machine) {
		go m.Upload(ctx, path)
	})
}

func handleRefresh(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	full := fs.Bool("full", false, "retrain the personal model before scoring")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, log, err := cf.load()
	if err != nil {
		return err
	}
	return runWorkflow(ctx, c, log, func(m *workflow.Machine) {
		go m.Refresh(ctx, *full)
	})
}

func handleRecs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recs", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	page := fs.Int("page", 1, "page to print")
	reranked := fs.Bool("reranked", false, "print the reranked list instead of the raw one")
	all := fs.Bool("all", false, "print every page")
	jsonOut := fs.Bool("json", false, "print items as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, _, err := cf.load()
	if err != nil {
		return err
	}
	client, err := api.New(c)
	if err != nil {
		return err
	}
	st, err := state.Open(c)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	resp, err := client.Recommendations(ctx)
	if errors.Is(err, api.ErrPending) {
		return errors.New("no recommendations yet; run: fedrec refresh")
	}
	if err != nil {
		return err
	}
	list := resp.Raw
	if *reranked {
		list = resp.Reranked
	}
	items := recs.FromAPI(list)

	genres, err := st.GenreFilters()
	if err != nil {
		return err
	}
	settings, err := st.Settings()
	if err != nil {
		return err
	}
	var blockedIDs map[int]bool
	if settings.EnableBlockItems {
		if blockedIDs, err = st.BlockedIDs(); err != nil {
			return err
		}
	}
	filtered := recs.Filter(items, genres, blockedIDs)

	if *jsonOut {
		b, err := json.MarshalIndent(filtered, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}

	pv := recs.Paginate(filtered, *page)
	from, to := pv.Page, pv.Page
	if *all {
		from, to = 1, pv.TotalPages
	}
	for p := from; p <= to; p++ {
		pv = recs.Paginate(filtered, p)
		fmt.Printf("page %d/%d (%d titles", pv.Page, pv.TotalPages, pv.TotalFiltered)
		if dropped := len(items) - pv.TotalFiltered; dropped > 0 {
			fmt.Printf(", %d filtered out", dropped)
		}
		fmt.Println(")")
		for _, it := range pv.Items {
			line := fmt.Sprintf("  %3d. %s", it.Rank, it.Name)
			if it.Genres != "" {
				line += "  [" + it.Genres + "]"
			}
			fmt.Println(line)
		}
	}
	return nil
}

func handleMovie(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("movie", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	jsonOut := fs.Bool("json", false, "print the item as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: fedrec movie ID")
	}
	id, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid id %q", fs.Arg(0))
	}
	c, _, err := cf.load()
	if err != nil {
		return err
	}
	client, err := api.New(c)
	if err != nil {
		return err
	}
	item, err := client.MovieDetails(ctx, id)
	if errors.Is(err, api.ErrPending) {
		return fmt.Errorf("no title with id %d", id)
	}
	if err != nil {
		return err
	}
	if *jsonOut {
		b, err := json.MarshalIndent(item, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}
	fmt.Println(item.Name)
	if item.ReleaseYear > 0 {
		fmt.Println("year:    ", item.ReleaseYear)
	}
	if item.Rating != "" {
		fmt.Println("rating:  ", item.Rating)
	}
	if item.Genres != "" {
		fmt.Println("genres:  ", item.Genres)
	}
	if item.Description != "" {
		fmt.Println()
		fmt.Println(item.Description)
	}
	return nil
}

func handleFeedback(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("feedback", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	rating := fs.Int("rating", 0, "star rating, 1 to 5")
	message := fs.String("message", "", "optional free-form feedback")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, _, err := cf.load()
	if err != nil {
		return err
	}
	client, err := api.New(c)
	if err != nil {
		return err
	}
	if err := client.SubmitFeedback(ctx, *rating, *message); err != nil {
		return err
	}
	fmt.Println("thanks, feedback recorded")
	return nil
}

func handleOptOut(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("optout", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	reason := fs.String("reason", "", "why you are leaving (optional)")
	message := fs.String("message", "", "anything else you want to tell the operators")
	confirm := fs.Bool("yes", false, "confirm the opt-out")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*confirm {
		return errors.New("opting out withdraws you from the study; re-run with --yes to confirm")
	}
	c, _, err := cf.load()
	if err != nil {
		return err
	}
	client, err := api.New(c)
	if err != nil {
		return err
	}
	if err := client.OptOut(ctx, *reason, *message); err != nil {
		return err
	}
	fmt.Println("opt-out recorded")
	return nil
}

func handleTUI(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, log, err := cf.load()
	if err != nil {
		return err
	}
	st, err := state.Open(c)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	client, err := api.New(c)
	if err != nil {
		return err
	}
	met := metrics.New(c)
	defer func() {
		if err := met.Write(); err != nil {
			log.Warn().Err(err).Msg("write metrics textfile")
		}
	}()
	return tui.Run(c, st, client, log, met)
}
