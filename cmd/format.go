package cmd

import (
	"fmt"
	"sort"

	"github.com/rubiojr/carefinder/pkg/storage"
)

// formatNumber formats a number with K/M suffixes for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	} else {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
}

// formatStats formats storage statistics for display
func formatStats(stats *storage.Stats) {
	fmt.Printf("📊 Directory Statistics\n")
	fmt.Printf("═══════════════════════\n\n")

	fmt.Printf("Total providers: %s\n", formatNumber(stats.Providers))
	fmt.Printf("Favorites: %s\n", formatNumber(stats.Favorites))
	fmt.Printf("Compare entries: %s\n", formatNumber(stats.Compare))
	fmt.Printf("Logged contacts: %s\n\n", formatNumber(stats.Contacts))

	if stats.Providers == 0 {
		fmt.Printf("No providers imported yet. Run 'carefinder import <file>'.\n")
		return
	}

	regions := make([]string, 0, len(stats.ByRegion))
	for region := range stats.ByRegion {
		regions = append(regions, region)
	}
	// Largest regions first
	sort.Slice(regions, func(i, j int) bool {
		if stats.ByRegion[regions[i]] != stats.ByRegion[regions[j]] {
			return stats.ByRegion[regions[i]] > stats.ByRegion[regions[j]]
		}
		return regions[i] < regions[j]
	})

	fmt.Printf("Providers by region:\n")
	for _, region := range regions {
		name := region
		if name == "" {
			name = "(no region)"
		}
		fmt.Printf("  %-24s %s\n", name, formatNumber(stats.ByRegion[region]))
	}
}
