package cli

import (
	"fmt"
	"os"

	"github.com/samber/mo"
	"github.com/spf13/cobra"

	"github.com/gakucal/gakucal/internal/export"
	"github.com/gakucal/gakucal/internal/syllabus"
)

func newExportCmd() *cobra.Command {
	var flagInput string
	var flagOut string
	var flagSyllabi bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the reconciled timetable as an iCalendar file",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, plans, err := buildPlans(cmd.Context(), flagInput)
			if err != nil {
				return err
			}

			fetcher := syllabus.NewFetcher()
			courses := make([]export.Course, 0, len(plans))
			for _, plan := range plans {
				data := mo.None[syllabus.Syllabus]()
				if flagSyllabi && plan.Course.SyllabusURL != "" {
					data = fetcher.Fetch(cmd.Context(), plan.Course.SyllabusURL)
				}
				courses = append(courses, export.Course{Plan: plan, Syllabus: data})
			}

			f, err := os.Create(flagOut)
			if err != nil {
				return fmt.Errorf("creating %s: %w", flagOut, err)
			}
			defer f.Close()

			if err := export.Write(f, courses); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote %d courses to %s\n", len(courses), flagOut)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagInput, "input", "", "Parse a saved portal page instead of fetching")
	cmd.Flags().StringVar(&flagOut, "out", "timetable.ics", "Output file")
	cmd.Flags().BoolVar(&flagSyllabi, "syllabi", false, "Fetch syllabus pages to enrich event details")
	return cmd
}
