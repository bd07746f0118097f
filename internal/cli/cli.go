package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gakucal/gakucal/internal/config"
	"github.com/gakucal/gakucal/internal/gcal"
	"github.com/gakucal/gakucal/internal/logger"
	"github.com/gakucal/gakucal/internal/scraper"
	"github.com/gakucal/gakucal/internal/storage"
	"github.com/gakucal/gakucal/internal/timetable"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

var (
	flagConfig  string
	flagDataDir string
	flagFormat  string
	flagVerbose bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gakucal",
		Short: "Sync a university timetable into Google Calendar",
		Long: `A CLI tool that scrapes the student portal's timetable, reconciles it
against public holidays and declared schedule changes, and syncs the result
into Google Calendar as weekly recurring events.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagVerbose {
				logger.SetDefault(logger.New(logger.LevelDebug, os.Stderr))
			} else {
				logger.SetDefault(logger.New(logger.LevelWarn, os.Stderr))
			}
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.config/gakucal/config.yaml)")
	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (overrides config)")
	cmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose logging")

	cmd.AddCommand(
		newSyncCmd(),
		newPlanCmd(),
		newExportCmd(),
		newStatusCmd(),
		newCalendarsCmd(),
		newChangesCmd(),
	)
	return cmd
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}

func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

func outputFormat() (OutputFormat, error) {
	format := OutputFormat(flagFormat)
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
	}
	return format, nil
}

func openStorage(cfg *config.Config) (*storage.Storage, error) {
	dataDir := cfg.DataDir
	if flagDataDir != "" {
		dataDir = flagDataDir
	}
	store, err := storage.New(dataDir)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

func newCalendarClient(cfg *config.Config) (*gcal.Client, error) {
	token, err := cfg.Token()
	if err != nil {
		return nil, err
	}
	return gcal.NewClient(gcal.StaticToken(token)), nil
}

// loadCourses resolves the timetable from, in order: a saved HTML file, the
// live portal, or the last scraped timetable on disk. A live scrape updates
// the on-disk copy so plan and export keep working offline.
func loadCourses(cfg *config.Config, store *storage.Storage, inputPath string) ([]timetable.CourseSlot, error) {
	if inputPath != "" {
		f, err := os.Open(inputPath)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", inputPath, err)
		}
		defer f.Close()
		return scraper.ParseTimetable(f, cfg.PortalURL)
	}

	if cfg.PortalURL != "" {
		courses, err := scraper.New().FetchTimetable(cfg.PortalURL)
		if err != nil {
			return nil, fmt.Errorf("scraping timetable: %w", err)
		}
		if err := store.SaveTimetable(courses); err != nil {
			return nil, fmt.Errorf("caching timetable: %w", err)
		}
		return courses, nil
	}

	courses, err := store.LoadTimetable()
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return nil, fmt.Errorf("no portal_url configured and no cached timetable; set portal_url or pass --input")
	}
	return courses, nil
}
