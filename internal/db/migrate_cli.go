package db

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}

	action := args[0]

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		log.Fatalf("Failed to get migrations filesystem: %v", err)
	}

	// Open without running schema initialization; migrations manage the
	// schema here.
	database, err := OpenDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	switch action {
	case "up":
		if err := database.MigrateUp(migrationsFS); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		fmt.Println("Migrations applied")

	case "down":
		if err := database.MigrateDown(migrationsFS); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		fmt.Println("Rolled back one migration")

	case "status":
		version, dirty, err := database.MigrateVersion(migrationsFS)
		if err != nil {
			log.Fatalf("Failed to read migration status: %v", err)
		}
		fmt.Printf("Current version: %d (dirty: %v)\n", version, dirty)

	case "version":
		if len(args) < 2 {
			log.Fatal("Usage: passage-report migrate version <version_number>")
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			log.Fatalf("Invalid version %q: %v", args[1], err)
		}
		if err := database.MigrateTo(migrationsFS, uint(v)); err != nil {
			log.Fatalf("Migration to version %d failed: %v", v, err)
		}
		fmt.Printf("Migrated to version %d\n", v)

	case "force":
		if len(args) < 2 {
			log.Fatal("Usage: passage-report migrate force <version_number>")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid version %q: %v", args[1], err)
		}
		if err := database.MigrateForce(migrationsFS, v); err != nil {
			log.Fatalf("Force migration failed: %v", err)
		}
		fmt.Printf("Forced version to %d\n", v)

	default:
		PrintMigrateHelp()
		os.Exit(1)
	}
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp() {
	fmt.Println(`Usage: passage-report migrate <action>

Actions:
  up                  Apply all pending migrations
  down                Roll back the most recent migration
  status              Show current migration version
  version <n>         Migrate up or down to version n
  force <n>           Force the recorded version to n (dirty-state recovery)`)
}
