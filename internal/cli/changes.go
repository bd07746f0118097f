package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gakucal/gakucal/internal/reconcile"
	"github.com/gakucal/gakucal/internal/storage"
	"github.com/gakucal/gakucal/internal/timetable"
)

func newChangesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Manage schedule changes (day substitutions)",
		Long: `A schedule change declares that one calendar date follows a different
weekday's timetable, e.g. a Wednesday that runs Tuesday classes. Changes are
stored locally and applied by sync, plan, and export.`,
	}
	cmd.AddCommand(newChangesAddCmd(), newChangesRemoveCmd(), newChangesListCmd())
	return cmd
}

func openChanges() (*storage.Storage, *reconcile.ChangeSet, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := openStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	changes, err := store.LoadChanges()
	if err != nil {
		return nil, nil, err
	}
	return store, changes, nil
}

func newChangesAddCmd() *cobra.Command {
	var flagDate string
	var flagTo string
	var flagDescription string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a day substitution",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := time.ParseInLocation(dateLayout, flagDate, timetable.JST)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}
			toDay, err := timetable.WeekdayFromKanji(flagTo)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			store, changes, err := openChanges()
			if err != nil {
				return err
			}
			change, err := changes.Add(date, toDay, flagDescription)
			if err != nil {
				return err
			}
			if err := store.SaveChanges(changes); err != nil {
				return err
			}
			fmt.Printf("Added %s: %s follows the %s曜 timetable\n",
				change.ID, flagDate, timetable.Kanji(toDay))
			return nil
		},
	}

	cmd.Flags().StringVar(&flagDate, "date", "", "Date of the substitution (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flagTo, "to", "", "Weekday whose timetable applies (kanji, e.g. 火)")
	cmd.Flags().StringVar(&flagDescription, "description", "", "Optional annotation shown on replacement events")
	cmd.MarkFlagRequired("date")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newChangesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a schedule change by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, changes, err := openChanges()
			if err != nil {
				return err
			}
			if !changes.Remove(args[0]) {
				return fmt.Errorf("no schedule change with id %s", args[0])
			}
			if err := store.SaveChanges(changes); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", args[0])
			return nil
		},
	}
}

func newChangesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured schedule changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			_, changes, err := openChanges()
			if err != nil {
				return err
			}
			return WriteChanges(os.Stdout, changes.All(), format)
		},
	}
}
