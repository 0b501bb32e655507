package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quaverlab/quaver/internal/analysis"
	"github.com/quaverlab/quaver/internal/audioindex"
	"github.com/quaverlab/quaver/internal/corpus"
	"github.com/quaverlab/quaver/internal/metadata"
	"github.com/quaverlab/quaver/internal/textindex"
)

var buildTextCmd = &cobra.Command{
	Use:   "build-text",
	Short: "Build the SPIMI text index from the corpus CSV",
	RunE:  runBuildText,
}

var buildAudioCmd = &cobra.Command{
	Use:   "build-audio",
	Short: "Build the acoustic inverted index from stored histograms",
	RunE:  runBuildAudio,
}

var buildMetaCmd = &cobra.Command{
	Use:   "build-meta",
	Short: "Load metadata rows from the corpus CSV into sqlite",
	RunE:  runBuildMeta,
}

func init() {
	buildTextCmd.Flags().String("corpus", "", "Corpus CSV path (overrides config)")
	buildTextCmd.Flags().Int("block-limit", 0, "Documents per SPIMI block (overrides config)")
	buildAudioCmd.Flags().Int("k", 0, "Codebook size K (overrides config)")
	buildMetaCmd.Flags().String("corpus", "", "Corpus CSV path (overrides config)")
}

func runBuildText(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if p, _ := cmd.Flags().GetString("corpus"); p != "" {
		cfg.CorpusPath = p
	}
	if n, _ := cmd.Flags().GetInt("block-limit"); n > 0 {
		cfg.BlockLimit = n
	}

	analyzer, err := analysis.New(cfg.StoplistPath)
	if err != nil {
		return err
	}
	builder := &textindex.Builder{
		Analyzer:   analyzer,
		Fields:     cfg.TextFields,
		Dir:        cfg.TextIndexDir(),
		BlockLimit: cfg.BlockLimit,
	}
	reader := &corpus.Reader{
		Path:       cfg.CorpusPath,
		IDColumn:   cfg.IDColumn,
		TextFields: cfg.TextFields,
	}
	summary, err := builder.Build(cmd.Context(), reader)
	if err != nil {
		return fmt.Errorf("build-text: %w", err)
	}
	fmt.Printf("indexed %d docs (%d terms, %d blocks, %d rows dropped) in %s\n",
		summary.Docs, summary.Terms, summary.Blocks, summary.Dropped, summary.Elapsed)
	return nil
}

func runBuildAudio(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if k, _ := cmd.Flags().GetInt("k"); k > 0 {
		cfg.CodebookK = k
	}
	builder := &audioindex.Builder{K: cfg.CodebookK, Dir: cfg.AudioIndexDir()}
	summary, err := builder.Build(cmd.Context(), &audioindex.DirSource{Dir: cfg.HistogramDir()})
	if err != nil {
		return fmt.Errorf("build-audio: %w", err)
	}
	fmt.Printf("indexed %d histograms (%d skipped) in %s\n",
		summary.Docs, summary.Skipped, summary.Elapsed)
	return nil
}

func runBuildMeta(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if p, _ := cmd.Flags().GetString("corpus"); p != "" {
		cfg.CorpusPath = p
	}
	store, err := metadata.Open(cfg.MetadataDBPath())
	if err != nil {
		return err
	}
	defer store.Close()
	n, err := store.ImportCSV(cfg.CorpusPath)
	if err != nil {
		return fmt.Errorf("build-meta: %w", err)
	}
	fmt.Printf("imported %d metadata rows\n", n)
	return nil
}
