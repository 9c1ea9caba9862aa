package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// OptimizeCommand creates the optimize command
func OptimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Database optimization and maintenance commands",
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Run integrity checks on the provider database",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "quick",
						Usage: "Skip deep FTS5-specific integrity checks",
						Value: false,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return checkDatabase(c.String("config"), !c.Bool("quick"))
				},
			},
			{
				Name:  "fts-rebuild",
				Usage: "Rebuild the provider full text index",
				Action: func(ctx context.Context, c *cli.Command) error {
					return rebuildFTS(c.String("config"))
				},
			},
			{
				Name:  "vacuum",
				Usage: "Optimize, checkpoint and vacuum the database",
				Action: func(ctx context.Context, c *cli.Command) error {
					return vacuumDatabase(c.String("config"))
				},
			},
		},
	}
}

// checkDatabase runs integrity checks on the provider database
func checkDatabase(configPath string, deepFTS bool) error {
	_, store, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	fmt.Print("Checking providers database... ")
	if err := store.IntegrityCheck(); err != nil {
		fmt.Printf("✗ FAILED - %v\n", err)
		return fmt.Errorf("integrity check failed")
	}
	if deepFTS {
		if err := store.FTSIntegrityCheck(); err != nil {
			fmt.Printf("✗ FTS FAILED - %v\n", err)
			fmt.Println("To fix FTS index corruption, run: carefinder optimize fts-rebuild")
			return fmt.Errorf("integrity check failed")
		}
	}
	fmt.Printf("✓ OK\n")
	return nil
}

// rebuildFTS rebuilds the provider full text index
func rebuildFTS(configPath string) error {
	_, store, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	fmt.Print("Rebuilding FTS5 index... ")
	if err := store.RebuildIndex(); err != nil {
		fmt.Printf("✗ FAILED\n")
		return err
	}
	fmt.Printf("✓ done\n")
	return nil
}

// vacuumDatabase runs the optimizer, truncates the WAL and reclaims space
func vacuumDatabase(configPath string) error {
	_, store, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	steps := []struct {
		name string
		fn   func() error
	}{
		{"PRAGMA optimize", store.Optimize},
		{"WAL checkpoint", store.WALCheckpoint},
		{"VACUUM", store.Vacuum},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		fmt.Printf("✓ %s completed successfully\n", step.name)
	}
	return nil
}
