package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kamis-scraper",
	Short: "Ingest KAMIS commodity prices into a relational store",
	Long: `kamis-scraper reads the commodity price tables published on the KAMIS
market information site, normalizes markets, counties, prices and dates,
and stores new price records without duplicating ones already ingested.

Configuration comes from the environment or a .env file.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
