package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gakucal/gakucal/internal/gcal"
)

func newCalendarsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List calendars the token can write to",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := newCalendarClient(cfg)
			if err != nil {
				return err
			}

			calendars, err := client.ListCalendars(cmd.Context())
			if err != nil {
				return err
			}
			writable := gcal.Writable(calendars)

			if format == FormatJSON {
				return writeJSON(os.Stdout, writable)
			}
			if len(writable) == 0 {
				fmt.Println("No writable calendars found.")
				return nil
			}
			for _, calendar := range writable {
				fmt.Printf("%s  %s\n", calendar.ID, calendar.Summary)
			}
			return nil
		},
	}
}
