package services

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"kamis-scraper/models"
	"kamis-scraper/storage"
)

// topProducts is how many products the summary lists by inserted rows.
const topProducts = 10

// PrintSummary writes a human-readable report of a run. counts holds the row
// count of every table and may be nil.
func PrintSummary(w io.Writer, r *models.RunSummary, counts map[string]int) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  KAMIS INGESTION SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Run\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Run ID    : %s\n", r.RunID)
	fmt.Fprintf(w, "  Duration  : %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	fmt.Fprintf(w, "  Products  : \033[1m%d\033[0m (empty %d, failed %d)\n", r.ProductsTotal, r.ProductsEmpty, r.ProductsFailed)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Records\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Rows scraped     : %d\n", r.RowsScraped)
	fmt.Fprintf(w, "  Rows dropped     : %d\n", r.RowsDropped)
	fmt.Fprintf(w, "  Duplicates       : %d\n", r.Duplicates)
	fmt.Fprintf(w, "  Failed           : %d\n", r.RecordsFailed)
	fmt.Fprintf(w, "  Estimated dates  : %d\n", r.EstimatedDates)
	fmt.Fprintf(w, "  Inserted         : \033[1;32m%d\033[0m\n", r.Inserted)
	fmt.Fprintln(w)

	if len(r.InsertedByProduct) > 0 {
		fmt.Fprintf(w, "\033[1;33m  Top Products by New Records\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for i, pc := range rankProducts(r.InsertedByProduct) {
			if i == topProducts {
				break
			}
			fmt.Fprintf(w, "  %-30s %d\n", truncate(pc.name, 28), pc.count)
		}
		fmt.Fprintln(w)
	}

	if len(r.FailedProducts) > 0 {
		fmt.Fprintf(w, "\033[1;33m  Failed Products\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for _, name := range r.FailedProducts {
			fmt.Fprintf(w, "  \033[1;31m%s\033[0m\n", name)
		}
		fmt.Fprintln(w)
	}

	if counts != nil {
		fmt.Fprintf(w, "\033[1;33m  Store Totals\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for _, table := range storage.Tables {
			fmt.Fprintf(w, "  %-22s %d\n", table, counts[table])
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

type productCount struct {
	name  string
	count int
}

// rankProducts orders products by inserted rows, most first, then by name.
func rankProducts(m map[string]int) []productCount {
	out := make([]productCount, 0, len(m))
	for name, n := range m {
		if n > 0 {
			out = append(out, productCount{name, n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

// truncate shortens s to max characters, counting runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
