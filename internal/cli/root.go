// Package cli is the quaver command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quaverlab/quaver/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "quaver",
	Short: "quaver — multimodal music retrieval engine",
	Long: `quaver indexes a music corpus two ways — a SPIMI text index over
lyrics and metadata fields, and an acoustic inverted index over
codeword histograms — and answers text, audio and fused queries, plus
a restricted SQL dialect over structured metadata.

Build:
  quaver build-text    — SPIMI text index from the corpus CSV
  quaver build-audio   — acoustic index from stored histograms
  quaver build-meta    — metadata rows from the corpus CSV

Query:
  quaver search        — text search (TF-IDF cosine)
  quaver similar       — tracks acoustically similar to a track id
  quaver fuse          — audio + metadata fused ranking
  quaver query         — restricted SQL over the metadata table

Run 'quaver <command> --help' for details on each command.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		debug, _ := cmd.Root().PersistentFlags().GetBool("debug")
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	},
}

// Execute is the CLI entrypoint.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to quaver.yaml (default: ./quaver.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(buildTextCmd)
	rootCmd.AddCommand(buildAudioCmd)
	rootCmd.AddCommand(buildMetaCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(fuseCmd)
	rootCmd.AddCommand(queryCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	return config.Load(path)
}
