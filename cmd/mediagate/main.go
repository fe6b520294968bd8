// Package main is the entry point for mediagate. Without arguments it runs the
// terminal dashboard; the fetch, status, history and prune subcommands run
// headless.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/mediagate/internal/app"
	"github.com/j-veylop/mediagate/internal/config"
	"github.com/j-veylop/mediagate/internal/logger"
	"github.com/j-veylop/mediagate/internal/models"
	"github.com/j-veylop/mediagate/internal/services"
	"github.com/j-veylop/mediagate/internal/ui/tabs/dashboard"
	"github.com/j-veylop/mediagate/internal/ui/tabs/history"
	"github.com/j-veylop/mediagate/internal/ui/tabs/info"
	"github.com/j-veylop/mediagate/internal/version"
)

const (
	exitError  = 1
	exitDenied = 2

	defaultHistoryLimit = 20
)

var errDenied = errors.New("batch denied")

func main() {
	args := os.Args[1:]

	if len(args) > 0 {
		switch args[0] {
		case "-v", "--version":
			fmt.Println(version.Info())
			os.Exit(0)
		case "-h", "--help", "help":
			printUsage()
			os.Exit(0)
		}
	}

	var err error
	switch {
	case len(args) == 0:
		err = runDashboard()
	case args[0] == "fetch":
		err = runFetch(args[1:], os.Stdout)
	case args[0] == "status":
		err = runStatus(os.Stdout)
	case args[0] == "history":
		err = runHistory(args[1:], os.Stdout)
	case args[0] == "prune":
		err = runPrune(args[1:], os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(exitError)
	}

	if errors.Is(err, errDenied) {
		os.Exit(exitDenied)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
}

// setup loads configuration and starts logging. defaultLogPath picks the log
// file when LOG_FILE is unset; nil logs to stderr.
func setup(defaultLogPath func(*config.Config) string) (*config.Config, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logPath := cfg.LogFile
	if logPath == "" && defaultLogPath != nil {
		logPath = defaultLogPath(cfg)
	}
	closer, err := logger.Setup(logger.Options{Level: cfg.LogLevel, Path: logPath, Format: cfg.LogFormat})
	if err != nil {
		return nil, nil, err
	}
	return cfg, closer, nil
}

// runDashboard runs the terminal UI until the user quits.
func runDashboard() error {
	cfg, logCloser, err := setup(func(c *config.Config) string {
		return filepath.Join(filepath.Dir(c.QuotaStatePath), "mediagate.log")
	})
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	svcManager, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := svcManager.Close(); closeErr != nil {
			logger.Warn("error closing services", "error", closeErr)
		}
	}()

	model := app.NewModel(svcManager)
	state := model.GetState()
	model.SetTabs([]app.Tab{
		dashboard.New(state, model.GetCommands()),
		history.New(state, svcManager),
		info.New(state, cfg),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		if _, ok := <-sigChan; ok {
			p.Send(tea.Quit())
		}
	}()

	logger.Info("dashboard started", "version", version.GetVersion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// runFetch acquires one batch and prints the outcome of every task.
func runFetch(urls []string, out io.Writer) error {
	if len(urls) == 0 {
		return errors.New("fetch needs at least one URL")
	}

	svcManager, closeAll, err := openArchive()
	if err != nil {
		return err
	}
	defer closeAll()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	batch, err := svcManager.Acquire(ctx, urls)
	if err != nil {
		return err
	}
	return printBatch(out, batch)
}

func printBatch(out io.Writer, batch *models.Batch) error {
	if !batch.Admitted {
		fmt.Fprintf(out, "Denied: %s\n", batch.Reason)
		return errDenied
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tTYPE\tSIZE\tURL\tRESULT")
	for _, t := range batch.Tasks {
		size := "-"
		if t.Bytes > 0 {
			size = humanize.Bytes(uint64(t.Bytes))
		}
		result := t.Path
		if t.Err != nil {
			result = t.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Status, t.Type, size, t.URL, result)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d kept, %d failed\n", len(batch.Paths()), len(batch.Failed()))
	return nil
}

// runStatus prints the remaining budget and cumulative statistics.
func runStatus(out io.Writer) error {
	cfg, logCloser, err := setup(nil)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	svcManager, err := services.NewManager(cfg, services.WithoutArchive())
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() { _ = svcManager.Close() }()

	remaining, stats := svcManager.Status()
	printStatus(out, remaining, stats)
	return nil
}

func printStatus(out io.Writer, r models.Remaining, s models.StatsSnapshot) {
	limitNote := ""
	if r.ManualLimit {
		limitNote = " (manual)"
	}
	hourState := "open"
	if !r.HourEnabled {
		hourState = "closed"
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Daily\t%d / %d%s\tused %d\n", r.Daily, r.DailyLimit, limitNote, r.DailyUsage)
	fmt.Fprintf(w, "Monthly\t%d / %d\tused %d\n", r.Monthly, r.MonthlyLimit, r.MonthlyUsage)
	fmt.Fprintf(w, "Hour\t%02d:00 %s\t\n", r.CurrentHour, hourState)
	fmt.Fprintf(w, "Requests\t%d\tallowed %d, blocked %d\n", s.TotalRequests, s.TotalAllowed, s.TotalBlocked)
	if s.LastRequestTime != nil {
		fmt.Fprintf(w, "Last request\t%s\t\n", humanize.Time(*s.LastRequestTime))
	}
	_ = w.Flush()
}

// openArchive loads configuration and a manager backed by the archive.
func openArchive() (*services.Manager, func(), error) {
	cfg, logCloser, err := setup(nil)
	if err != nil {
		return nil, nil, err
	}

	svcManager, err := services.NewManager(cfg)
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return svcManager, func() {
		_ = svcManager.Close()
		_ = logCloser.Close()
	}, nil
}

// runHistory prints the most recent archived quota requests.
func runHistory(args []string, out io.Writer) error {
	limit := defaultHistoryLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid history limit %q", args[0])
		}
		limit = n
	}

	svcManager, closeAll, err := openArchive()
	if err != nil {
		return err
	}
	defer closeAll()

	events, err := svcManager.RecentRequests(limit)
	if err != nil {
		return err
	}
	printHistory(out, events)
	return nil
}

func printHistory(out io.Writer, events []models.RequestEvent) {
	if len(events) == 0 {
		fmt.Fprintln(out, "No archived requests")
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN	HOUR	RESULT	BATCH")
	for _, e := range events {
		result := "failed"
		if e.Success {
			result = "ok"
		}
		batch := e.BatchID
		if batch == "" {
			batch = "-"
		}
		fmt.Fprintf(w, "%s\t%02d:00\t%s\t%s\n", humanize.Time(e.Timestamp), e.Hour, result, batch)
	}
	_ = w.Flush()
}

// runPrune deletes archived rows older than the given number of days.
func runPrune(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("prune needs the number of days to keep")
	}
	days, err := strconv.Atoi(args[0])
	if err != nil || days < 1 {
		return fmt.Errorf("invalid retention %q", args[0])
	}

	svcManager, closeAll, err := openArchive()
	if err != nil {
		return err
	}
	defer closeAll()

	deleted, err := svcManager.PruneArchive(days)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %s archived rows older than %d days\n", humanize.Comma(deleted), days)
	return nil
}

// printUsage prints the command-line usage information.
func printUsage() {
	fmt.Println(`mediagate - quota-gated media acquisition

Usage:
  mediagate                 Run the terminal dashboard
  mediagate fetch URL...    Acquire one batch of media
  mediagate status          Print the remaining budget
  mediagate history [N]     List the N most recent archived requests (default: 20)
  mediagate prune DAYS      Delete archive rows older than DAYS and compact it

Flags:
  -h, --help      Show this help message
  -v, --version   Show version information

Dashboard keys:
  1-3             Switch between tabs (Dashboard, History, Info)
  Tab/Shift+Tab   Navigate between tabs
  [ ] / j k       Move the hour cursor
  Space           Toggle the selected hour
  + / -           Raise or lower the manual daily limit
  x               Clear the manual daily limit
  D / M           Reset daily or monthly usage
  t               Cycle the history time range
  r               Refresh data
  ?               Toggle help
  q, Ctrl+C       Quit

Environment Variables:
  MONTHLY_LIMIT             Monthly request budget (default: 1500)
  QUOTA_STATE_PATH          Quota state JSON file
  DATABASE_PATH             SQLite archive path
  DOWNLOAD_DIR              Destination directory for media
  USER_AGENTS_PATH          Optional user-agent pool, one per line
  FFMPEG_PATH               ffmpeg binary used for HLS (default: ffmpeg)
  MAX_CONCURRENT_DOWNLOADS  Parallel tasks per batch (default: 4)
  FETCH_MAX_ATTEMPTS        Attempts per download (default: 3)
  FETCH_RETRY_CLIENT_ERRORS Retry 4xx responses too (default: true)
  LOG_LEVEL, LOG_FILE       Logging (dashboard logs to a file by default)
  LOG_FORMAT                text or json (default: text)

Configuration:
  .env files are read from the current directory first, then from the
  mediagate configuration directory.`)
}
