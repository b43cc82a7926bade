// Command sentimentctl inspects stored predictions and runs the model offline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath  string
	databaseURL string
	modelDir    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "sentimentctl",
		Short:         "Operate the Nepali sentiment service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $SENTIMENT_CONFIG or config.yaml)")
	root.PersistentFlags().StringVar(&opts.databaseURL, "db", "", "database URL, overrides config")
	root.PersistentFlags().StringVar(&opts.modelDir, "model-dir", "", "model artifact directory, overrides config")

	root.AddCommand(newCheckDBCmd(opts), newPredictCmd(opts), newModelCmd(opts))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
