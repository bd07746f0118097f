package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/gakucal/gakucal/internal/logger"
	"github.com/gakucal/gakucal/internal/syllabus"
	"github.com/gakucal/gakucal/internal/sync"
)

func newSyncCmd() *cobra.Command {
	var flagInput string
	var flagCalendarID string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync the timetable into the configured calendar",
		Long: `Scrapes the timetable, reconciles it against public holidays and
schedule changes, and creates one weekly recurring event per course.
Occurrences on holidays or displaced days are deleted; substituted days get
standalone replacement events.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if flagCalendarID != "" {
				cfg.CalendarID = flagCalendarID
			}
			term, err := cfg.TermRange()
			if err != nil {
				return err
			}
			store, err := openStorage(cfg)
			if err != nil {
				return err
			}
			courses, err := loadCourses(cfg, store, flagInput)
			if err != nil {
				return err
			}
			changes, err := store.LoadChanges()
			if err != nil {
				return err
			}
			client, err := newCalendarClient(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			opts := sync.Options{
				CalendarID: cfg.CalendarID,
				Term:       term,
				Changes:    changes,
				Delay:      cfg.Delay(),
				Jitter:     cfg.Jitter(),
			}
			if format == FormatText {
				opts.OnProgress = func(done, total int) {
					fmt.Fprintf(os.Stderr, "\rSyncing courses... %d/%d", done, total)
					if done == total {
						fmt.Fprintln(os.Stderr)
					}
				}
			}

			result, runErr := sync.New(client, syllabus.NewFetcher()).Run(ctx, courses, opts)

			if result != nil {
				output := &PlanResult{
					GeneratedAt: time.Now().UTC(),
					TermStart:   term.Start.Format(dateLayout),
					TermEnd:     term.End.Format(dateLayout),
					Holidays:    result.Holidays,
					Synced:      true,
				}
				for _, course := range result.Courses {
					plan := NewCoursePlan(course.Plan)
					plan.EventID = course.EventID
					output.Courses = append(output.Courses, plan)
				}
				if err := WritePlanResult(os.Stdout, output, format); err != nil && runErr == nil {
					runErr = fmt.Errorf("writing output: %w", err)
				}
			}
			if flagVerbose {
				logger.Info("Run metrics", logger.Fields{"metrics": logger.GetMetricsSnapshot()})
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&flagInput, "input", "", "Parse a saved portal page instead of fetching")
	cmd.Flags().StringVar(&flagCalendarID, "calendar-id", "", "Target calendar (overrides config)")
	return cmd
}
