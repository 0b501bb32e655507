package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quaverlab/quaver/internal/audioindex"
)

var importHistCmd = &cobra.Command{
	Use:   "import-hist <csv>",
	Short: "Import codeword histograms from a CSV into the histogram store",
	Long: `Load per-track codeword histograms from a CSV whose first column is
the track id and whose remaining K columns are the codeword counts.
Rows with the wrong column count are skipped and counted. Run
build-audio afterwards to rebuild the acoustic index.`,
	Args: cobra.ExactArgs(1),
	RunE: runImportHist,
}

func init() {
	rootCmd.AddCommand(importHistCmd)
}

func runImportHist(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("import-hist: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	imported, skipped := 0, 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("import-hist: read row: %w", err)
		}
		if len(record) != cfg.CodebookK+1 {
			skipped++
			continue
		}
		counts := make([]float64, cfg.CodebookK)
		ok := true
		for i, cell := range record[1:] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || v < 0 {
				ok = false
				break
			}
			counts[i] = v
		}
		if !ok {
			skipped++
			continue
		}
		if err := audioindex.SaveHistogram(cfg.HistogramDir(), record[0], counts); err != nil {
			return err
		}
		imported++
	}
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("malformed histogram rows dropped")
	}
	fmt.Printf("imported %d histograms (%d skipped)\n", imported, skipped)
	return nil
}
