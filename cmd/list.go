package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rubiojr/carefinder/pkg/storage"
	"github.com/urfave/cli/v3"
)

var listNames = []string{storage.ListFavorites, storage.ListCompare, "recent", "contacts"}

// ListCommand creates the list command
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "Show a member's favorites, compare list, recently viewed or contact log",
		ArgsUsage: "<favorites|compare|recent|contacts>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Usage:    "Member id",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			name := c.Args().First()
			if name == "" {
				name = storage.ListFavorites
			}
			return showList(c.String("config"), c.String("user"), name)
		},
	}
}

// showList prints one of a member's lists with provider names
func showList(configPath, user, name string) error {
	_, store, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	if name == "contacts" {
		contacts, err := store.Contacts(user)
		if err != nil {
			return fmt.Errorf("listing contacts: %w", err)
		}
		fmt.Printf("=== contacts for %s (%d) ===\n\n", user, len(contacts))
		for _, c := range contacts {
			fmt.Printf("%s  %-8s %s  %s\n", c.CreatedAt.Format("2006-01-02 15:04"), c.Method, providerName(store, c.ProviderID), c.Note)
		}
		return nil
	}

	var ids []string
	switch name {
	case storage.ListFavorites, storage.ListCompare:
		ids, err = store.List(name, user)
	case "recent":
		ids, err = store.RecentlyViewed(user)
	default:
		return fmt.Errorf("unknown list %q, expected one of %v", name, listNames)
	}
	if err != nil {
		return fmt.Errorf("listing %s: %w", name, err)
	}

	if len(ids) == 0 {
		fmt.Printf("No providers in %s for '%s'\n", name, user)
		return nil
	}
	fmt.Printf("=== %s for %s (%d) ===\n\n", name, user, len(ids))
	for i, id := range ids {
		fmt.Printf("%d. %s\n", i+1, providerName(store, id))
	}
	return nil
}

func providerName(store *storage.Store, id string) string {
	p, err := store.GetProvider(id)
	if errors.Is(err, storage.ErrNotFound) {
		return id + " (removed)"
	}
	if err != nil {
		return id
	}
	return p.Name
}
