package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const serviceName = "paygw"

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "paygw",
		Short:   "Pay-by-link payment gateway service",
		Version: Version,
		// Running the binary without a subcommand serves HTTP.
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(sessionTokenCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
