package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const appName = "air-quality-collector"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Collect weather and air quality readings into a relational database",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				log.Printf("INFO: No .env file found or error loading it: %v", err)
			}
		},
	}

	root.AddCommand(newCollectCmd(), newServeCmd(), newStatsCmd())
	return root
}
