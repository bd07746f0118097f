package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gakucal/gakucal/internal/registration"
	"github.com/gakucal/gakucal/internal/scraper"
)

// fillBuckets labels the greedy capacity buckets of registration.FillRatio.
var fillBuckets = [6]string{"本登録", "第1", "第2", "第3", "第4", "第5"}

func newStatusCmd() *cobra.Command {
	var flagInput string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show registration status and per-priority fill ratios",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var rows [][]string
			if flagInput != "" {
				f, err := os.Open(flagInput)
				if err != nil {
					return fmt.Errorf("opening %s: %w", flagInput, err)
				}
				defer f.Close()
				rows, err = scraper.ParseRegistrationRows(f)
				if err != nil {
					return err
				}
			} else {
				if cfg.PortalURL == "" {
					return fmt.Errorf("portal_url is not configured; set it or pass --input")
				}
				rows, err = scraper.New().FetchRegistrationRows(cfg.PortalURL)
				if err != nil {
					return err
				}
			}

			table, err := registration.ParseRows(rows)
			if err != nil {
				return err
			}
			return writeStatus(os.Stdout, table, format)
		},
	}

	cmd.Flags().StringVar(&flagInput, "input", "", "Parse a saved portal page instead of fetching")
	return cmd
}

type statusRow struct {
	Number     string             `json:"number"`
	Name       string             `json:"name"`
	DayPeriods string             `json:"day_periods"`
	Capacity   int                `json:"capacity"`
	Total      int                `json:"total,omitempty"`
	Registered int                `json:"registered,omitempty"`
	FillRatios map[string]float64 `json:"fill_ratios,omitempty"`
}

func writeStatus(w io.Writer, table *registration.Table, format OutputFormat) error {
	rows := make([]statusRow, 0, len(table.Full)+len(table.Adjusted))
	for _, st := range table.Full {
		ratios := registration.FillRatio(st)
		byBucket := make(map[string]float64, len(ratios))
		for i, ratio := range ratios {
			byBucket[fillBuckets[i]] = ratio
		}
		rows = append(rows, statusRow{
			Number:     st.Course.Number,
			Name:       st.Course.Name,
			DayPeriods: cells(st.Course),
			Capacity:   st.Capacity,
			Total:      st.Total,
			FillRatios: byBucket,
		})
	}
	for _, st := range table.Adjusted {
		rows = append(rows, statusRow{
			Number:     st.Course.Number,
			Name:       st.Course.Name,
			DayPeriods: cells(st.Course),
			Capacity:   st.Capacity,
			Registered: st.Registered,
		})
	}

	if format == FormatJSON {
		return writeJSON(w, rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, "No registration rows found.")
		return nil
	}
	adjusted := len(table.Adjusted) > 0
	for _, row := range rows {
		if adjusted {
			fmt.Fprintf(w, "%s %s [%s]  %d/%d registered\n",
				row.Number, row.Name, row.DayPeriods, row.Registered, row.Capacity)
			continue
		}
		fmt.Fprintf(w, "%s %s [%s]  capacity %d, applied %d\n",
			row.Number, row.Name, row.DayPeriods, row.Capacity, row.Total)
		parts := make([]string, 0, len(fillBuckets))
		for _, bucket := range fillBuckets {
			parts = append(parts, fmt.Sprintf("%s %.0f%%", bucket, row.FillRatios[bucket]*100))
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(parts, "  "))
	}
	return nil
}

func cells(course registration.Course) string {
	parts := make([]string, 0, len(course.DayPeriods))
	for _, slot := range course.DayPeriods {
		parts = append(parts, slot.String())
	}
	return strings.Join(parts, ",")
}
