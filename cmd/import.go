package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/carefinder/pkg/provider"
	"github.com/urfave/cli/v3"
)

// ImportCommand creates the import command
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import providers from JSON or YAML files (optionally .zst compressed)",
		ArgsUsage: "<file> [file...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "feeds",
				Usage: "Import the catalog feeds from the config file (all, or the ones named as arguments)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Parse the files without storing anything",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Bool("feeds") {
				return syncFeeds(ctx, c.String("config"), c.Args().Slice())
			}
			if c.NArg() == 0 {
				return fmt.Errorf("at least one file is required")
			}
			return importProviders(c.String("config"), c.Args().Slice(), c.Bool("dry-run"))
		},
	}
}

// importProviders loads every file and upserts its providers
func importProviders(configPath string, paths []string, dryRun bool) error {
	var all []provider.Provider
	for _, path := range paths {
		ps, err := provider.LoadFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d providers\n", path, len(ps))
		all = append(all, ps...)
	}

	if dryRun {
		fmt.Printf("Dry run: %d providers parsed, nothing stored\n", len(all))
		return nil
	}

	_, store, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	n, err := store.UpsertProviders(all)
	if err != nil {
		return fmt.Errorf("storing providers: %w", err)
	}
	fmt.Printf("Imported %d providers\n", n)
	return nil
}

// syncFeeds imports the configured catalog feeds once.
func syncFeeds(ctx context.Context, configPath string, names []string) error {
	cfg, store, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	wh, err := newWarehouse(cfg, store, nil)
	if err != nil {
		return err
	}
	results, err := wh.SyncOnce(ctx, names...)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Printf("%s: %v\n", res.Feed, res.Err)
			continue
		}
		fmt.Printf("%s: imported %d providers\n", res.Feed, res.Imported)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d feeds failed", failed, len(results))
	}
	return nil
}
