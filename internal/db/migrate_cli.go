package db

import (
	"errors"
	"fmt"
	"io"
)

// ErrUnknownMigrateAction is returned for an unrecognised migrate subcommand.
var ErrUnknownMigrateAction = errors.New("unknown migrate action")

// RunMigrateCommand handles the 'migrate' subcommand: up, down, status or help.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 || args[0] == "help" {
		PrintMigrateHelp(out)
		if len(args) < 1 {
			return fmt.Errorf("%w: no action given", ErrUnknownMigrateAction)
		}
		return nil
	}
	if dbPath == "" {
		return errors.New("migrate needs a database path (-db or db_path)")
	}

	// open without migrating so status reports the schema as found
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action := args[0]; action {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations applied")
	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
		fmt.Fprintln(out, "rolled back one migration")
	case "status":
		version, dirty, err := database.MigrateVersion()
		if err != nil {
			return err
		}
		if version == 0 {
			fmt.Fprintln(out, "schema version: none (no migrations applied)")
			return nil
		}
		fmt.Fprintf(out, "schema version: %d", version)
		if dirty {
			fmt.Fprint(out, " (dirty)")
		}
		fmt.Fprintln(out)
	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("%w: %q", ErrUnknownMigrateAction, action)
	}
	return nil
}

// PrintMigrateHelp writes usage for the migrate subcommand.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: gridloc -db <path> migrate <action>

Actions:
  up       apply all pending migrations
  down     roll back the most recent migration
  status   print the current schema version
  help     show this message
`)
}
