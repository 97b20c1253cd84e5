package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	serverURL  string

	rootCmd = &cobra.Command{
		Use:           "ingestd",
		Short:         "priority-laned, rate-limited bulk identifier ingestion",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: axon-ingest.yaml in ., ./configs or ~/.axon-ingest)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:4000", "server address used by client commands")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ingestd: %v\n", err)
		os.Exit(1)
	}
}
