package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/carefinder/pkg/executor"
	"github.com/rubiojr/carefinder/pkg/provider"
	"github.com/rubiojr/carefinder/pkg/query"
	"github.com/rubiojr/carefinder/pkg/render"
	"github.com/rubiojr/carefinder/pkg/results"
	"github.com/rubiojr/carefinder/pkg/tiering"
	"github.com/urfave/cli/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Margin(0, 0, 0, 2)

	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Margin(1, 0, 0, 0)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search the provider directory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Free text search term"},
			&cli.StringFlag{Name: "region", Usage: "Region to search in"},
			&cli.StringFlag{Name: "ward", Usage: "Ward within the region"},
			&cli.StringFlag{Name: "price", Usage: "Price band: low, medium or high"},
			&cli.StringSliceFlag{Name: "type", Usage: "Provider type (repeatable)"},
			&cli.StringSliceFlag{Name: "age", Usage: "Age range (repeatable)"},
			&cli.StringFlag{Name: "availability", Usage: "Vacancies in the selected age ranges: yes or no"},
			&cli.BoolFlag{Name: "cwelcc", Usage: "Only CWELCC participating providers"},
			&cli.BoolFlag{Name: "subsidy", Usage: "Only providers accepting fee subsidies"},
			&cli.StringFlag{Name: "sort", Usage: "Sort by name, rating, price or distance", Value: string(query.SortName)},
			&cli.StringFlag{Name: "order", Usage: "Sort order: asc or desc", Value: string(query.Asc)},
			&cli.IntFlag{Name: "page", Usage: "Result page", Value: 1},
			&cli.StringFlag{Name: "user", Usage: "Search as this member instead of a guest"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			spec := query.Default().Apply(
				query.SetText(c.String("query")),
				query.SetRegion(c.String("region")),
				query.SetWard(c.String("ward")),
				query.SetPriceBand(query.ParsePriceBand(c.String("price"))),
				query.SetTypes(c.StringSlice("type")...),
				query.SetAgeRanges(c.StringSlice("age")...),
				query.SetAvailability(c.String("availability")),
				query.SetCWELCCOnly(c.Bool("cwelcc")),
				query.SetSubsidyOnly(c.Bool("subsidy")),
				query.SetSort(query.ParseSortKey(c.String("sort")), query.ParseSortOrder(c.String("order"))),
				query.SetPage(c.Int("page")),
			)
			return searchProviders(ctx, c.String("config"), spec, tiering.AuthSignal{User: c.String("user")})
		},
	}
}

// searchProviders runs spec through the same cache and tiering a web visitor
// gets and prints the result page
func searchProviders(ctx context.Context, configPath string, spec query.Spec, auth tiering.AuthSignal) error {
	cfg, store, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	searcher, err := newSearcher(cfg, store)
	if err != nil {
		return err
	}
	opts := []executor.Option{}
	if fb, err := loadFallback(cfg); err != nil {
		fmt.Printf("Warning: no fallback dataset: %v\n", err)
	} else {
		opts = append(opts, executor.WithFallback(fb))
	}
	cache := executor.NewCache(searcher, opts...)

	d, _ := tiering.Decide(auth)
	if d.IsGuest && spec.Page > 1 {
		return fmt.Errorf("paging past the first page requires signing in (use --user)")
	}

	res := cache.Fetch(ctx, spec, d.PageSize)
	if res.Err != nil {
		return fmt.Errorf("searching: %w", res.Err)
	}
	page := results.Process(res.Response.Items, res.Response.TotalCount, spec, d)

	fmt.Println(titleStyle.Render(fmt.Sprintf("%d providers for %s", page.Total, describe(spec))))
	if res.Fallback {
		fmt.Println(metaStyle.Render("Search is limited, showing results from the offline directory"))
	}
	if len(page.Items) == 0 {
		fmt.Println(noDataStyle.Render("No providers match this search"))
		return nil
	}

	for _, p := range page.Items {
		fmt.Println(cardStyle.Render(formatProvider(p)))
	}
	if page.Banner.Show {
		fmt.Println(bannerStyle.Render(page.Banner.Text))
	} else if res.Response.TotalPages > 1 {
		fmt.Println(metaStyle.Render(fmt.Sprintf("Page %d of %d", spec.Page, res.Response.TotalPages)))
	}
	return nil
}

// describe summarizes the active filters of spec
func describe(spec query.Spec) string {
	var parts []string
	if spec.Text != "" {
		parts = append(parts, fmt.Sprintf("%q", spec.Text))
	}
	if spec.Region != "" {
		place := spec.Region
		if spec.Ward != "" {
			place += " / " + spec.Ward
		}
		parts = append(parts, place)
	}
	if spec.PriceBand != query.PriceAny {
		parts = append(parts, string(spec.PriceBand)+" price")
	}
	if len(spec.Types) > 0 {
		parts = append(parts, spec.Types.String())
	}
	if len(parts) == 0 {
		return "all regions"
	}
	return strings.Join(parts, ", ")
}

var typeCaser = cases.Title(language.English)

func formatProvider(p provider.Provider) string {
	var b strings.Builder
	b.WriteString(nameStyle.Render(p.Name))
	b.WriteString("\n")

	meta := []string{}
	if p.Type != "" {
		meta = append(meta, typeCaser.String(p.Type))
	}
	if p.Region != "" {
		meta = append(meta, strings.TrimSpace(p.Region+" "+p.Ward))
	}
	meta = append(meta, render.FormatPrice(p))
	if p.Rating > 0 {
		meta = append(meta, render.Stars(p.Rating))
	}
	b.WriteString(metaStyle.Render(strings.Join(meta, " · ")))

	var flags []string
	if p.CWELCC {
		flags = append(flags, "CWELCC")
	}
	if p.Subsidy {
		flags = append(flags, "Fee subsidy")
	}
	if len(p.Vacancies) > 0 {
		flags = append(flags, "Vacancies: "+strings.Join(p.Vacancies, ", "))
	}
	if len(flags) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(flags, " · "))
	}
	return b.String()
}
