package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quaverlab/quaver/internal/engine"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Text search over the lyrics/metadata index",
	Long: `Rank tracks by TF-IDF cosine against a text query.

Examples:
  quaver search "love forever" --top 5
  quaver search "thunder" --fields lyrics,track_name`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var similarCmd = &cobra.Command{
	Use:   "similar <track-id>",
	Short: "Tracks acoustically similar to a stored track",
	Long: `Rank tracks by acoustic cosine similarity to a reference track's
codeword histogram. With --knn the brute-force scanner is used instead
of the inverted index.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

var fuseCmd = &cobra.Command{
	Use:   "fuse <track-id>",
	Short: "Fused audio + metadata ranking for a track",
	Args:  cobra.ExactArgs(1),
	RunE:  runFuse,
}

var queryCmd = &cobra.Command{
	Use:   "query <sql-or-condition>",
	Short: "Restricted SQL over the metadata table",
	Long: `Run the restricted dialect against the metadata store. Input not
starting with SELECT is treated as a bare WHERE condition.

Examples:
  quaver query 'genre = "Rock" AND year >= 2000'
  quaver query 'SELECT track_id, title FROM metadata WHERE year BETWEEN 2010 AND 2015'`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	searchCmd.Flags().Int("top", 0, "Result count (default from config)")
	searchCmd.Flags().String("fields", "", "Comma-separated fields to search (default: first text field)")
	similarCmd.Flags().Int("top", 0, "Result count (default from config)")
	similarCmd.Flags().Bool("knn", false, "Use the sequential scanner instead of the inverted index")
	fuseCmd.Flags().Int("top", 0, "Result count (default from config)")
	fuseCmd.Flags().Float64("alpha", -1, "Audio weight in [0,1] (default from config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e, err := engine.Load(cfg, engine.Options{Text: true})
	if err != nil {
		return err
	}
	defer e.Close()

	var fields []string
	if raw, _ := cmd.Flags().GetString("fields"); raw != "" {
		fields = strings.Split(raw, ",")
	}
	top, _ := cmd.Flags().GetInt("top")
	results, elapsed, err := e.TextSearch(strings.Join(args, " "), top, fields)
	if err != nil {
		return err
	}
	for i, r := range results {
		fmt.Printf("%2d. %-12s %.6f\n", i+1, r.DocID, r.Score)
	}
	fmt.Printf("%d results in %s\n", len(results), elapsed)
	return nil
}

func runSimilar(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	useKNN, _ := cmd.Flags().GetBool("knn")
	e, err := engine.Load(cfg, engine.Options{Audio: true, KNN: useKNN})
	if err != nil {
		return err
	}
	defer e.Close()

	top, _ := cmd.Flags().GetInt("top")
	search := e.SearchByID
	if useKNN {
		search = e.KNNSearchByID
	}
	results, err := search(args[0], top)
	if err != nil {
		return err
	}
	for i, r := range results {
		fmt.Printf("%2d. %-12s %.6f\n", i+1, r.DocID, r.Score)
	}
	return nil
}

func runFuse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e, err := engine.Load(cfg, engine.Options{Audio: true, Meta: true})
	if err != nil {
		return err
	}
	defer e.Close()

	top, _ := cmd.Flags().GetInt("top")
	alpha, _ := cmd.Flags().GetFloat64("alpha")
	if alpha < 0 {
		alpha = cfg.Alpha
	}
	fused, err := e.FusionSearch(args[0], top, alpha)
	if err != nil {
		return err
	}
	for i, c := range fused {
		fmt.Printf("%2d. %-12s final=%.4f audio=%.4f meta=%.1f  %s — %s (%s, %d)\n",
			i+1, c.TrackID, c.Final, c.Audio, c.MetadataScore, c.Artist, c.Title, c.Genre, c.Year)
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e, err := engine.Load(cfg, engine.Options{Meta: true})
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.MetadataQuery(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("sql:    %s\nparams: %v\nrows:   %d\n", res.SQL, res.Params, len(res.Rows))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Rows)
}
