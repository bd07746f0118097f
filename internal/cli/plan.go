package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gakucal/gakucal/internal/config"
	"github.com/gakucal/gakucal/internal/logger"
	"github.com/gakucal/gakucal/internal/reconcile"
	"github.com/gakucal/gakucal/internal/storage"
	"github.com/gakucal/gakucal/internal/timetable"
)

func newPlanCmd() *cobra.Command {
	var flagInput string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what sync would do, without touching the calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			term, holidays, plans, err := buildPlans(cmd.Context(), flagInput)
			if err != nil {
				return err
			}

			result := &PlanResult{
				GeneratedAt: time.Now().UTC(),
				TermStart:   term.Start.Format(dateLayout),
				TermEnd:     term.End.Format(dateLayout),
				Holidays:    holidays.Len(),
			}
			for _, plan := range plans {
				result.Courses = append(result.Courses, NewCoursePlan(plan))
			}
			return WritePlanResult(os.Stdout, result, format)
		},
	}

	cmd.Flags().StringVar(&flagInput, "input", "", "Parse a saved portal page instead of fetching")
	return cmd
}

// buildPlans runs the offline half of a sync: timetable, changes, holidays,
// and one reconciliation plan per course.
func buildPlans(ctx context.Context, inputPath string) (reconcile.Range, *reconcile.HolidaySet, []*reconcile.Plan, error) {
	var zero reconcile.Range

	cfg, err := loadConfig()
	if err != nil {
		return zero, nil, nil, err
	}
	term, err := cfg.TermRange()
	if err != nil {
		return zero, nil, nil, err
	}
	store, err := openStorage(cfg)
	if err != nil {
		return zero, nil, nil, err
	}
	courses, err := loadCourses(cfg, store, inputPath)
	if err != nil {
		return zero, nil, nil, err
	}
	changes, err := store.LoadChanges()
	if err != nil {
		return zero, nil, nil, err
	}
	holidays, err := termHolidays(ctx, cfg, store, term)
	if err != nil {
		return zero, nil, nil, err
	}

	plans := make([]*reconcile.Plan, 0, len(courses))
	for _, course := range courses {
		plan, err := reconcile.BuildPlan(course, term, holidays, changes)
		if err != nil {
			return zero, nil, nil, err
		}
		plans = append(plans, plan)
	}
	return term, holidays, plans, nil
}

// termHolidays serves holidays from the on-disk cache when it covers the
// term, fetching and caching them otherwise. Without an access token the
// plan proceeds holiday-blind rather than failing.
func termHolidays(ctx context.Context, cfg *config.Config, store *storage.Storage, term reconcile.Range) (*reconcile.HolidaySet, error) {
	cached, ok, err := store.LoadHolidays(term)
	if err != nil {
		return nil, err
	}
	if ok {
		return reconcile.NewHolidaySet(cached), nil
	}

	client, err := newCalendarClient(cfg)
	if err != nil {
		logger.Warn("No access token; planning without holiday data", logger.Fields{
			"token_env": cfg.TokenEnv,
		})
		return reconcile.NewHolidaySet(nil), nil
	}

	end := term.End.In(timetable.JST)
	holidays, err := client.ListHolidays(ctx, term.Start,
		time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, timetable.JST))
	if err != nil {
		return nil, err
	}
	if err := store.SaveHolidays(term, holidays); err != nil {
		return nil, err
	}
	return reconcile.NewHolidaySet(holidays), nil
}
