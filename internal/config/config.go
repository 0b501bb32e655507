// Package config centralizes engine configuration: file, environment
// and defaults resolve through viper in one place.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved engine configuration.
type Config struct {
	DataDir      string   `mapstructure:"data_dir"`
	CorpusPath   string   `mapstructure:"corpus_path"`
	IDColumn     string   `mapstructure:"id_column"`
	TextFields   []string `mapstructure:"text_fields"`
	StoplistPath string   `mapstructure:"stoplist_path"`
	BlockLimit   int      `mapstructure:"block_limit"`
	CodebookK    int      `mapstructure:"codebook_k"`
	TopK         int      `mapstructure:"top_k"`
	Alpha        float64  `mapstructure:"alpha"`
}

// TextIndexDir is where the text artifacts live.
func (c *Config) TextIndexDir() string { return filepath.Join(c.DataDir, "index", "text") }

// AudioIndexDir is where the acoustic artifacts live.
func (c *Config) AudioIndexDir() string { return filepath.Join(c.DataDir, "index", "audio") }

// HistogramDir is where per-track histograms live.
func (c *Config) HistogramDir() string { return filepath.Join(c.DataDir, "histograms") }

// MetadataDBPath is the sqlite metadata store.
func (c *Config) MetadataDBPath() string { return filepath.Join(c.DataDir, "metadata.db") }

// Load reads quaver.yaml (from the working directory or --config) and
// QUAVER_* environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("data_dir", "data")
	v.SetDefault("corpus_path", filepath.Join("data", "musica.csv"))
	v.SetDefault("id_column", "track_id")
	v.SetDefault("text_fields", []string{"lyrics", "track_name", "track_artist", "playlist_genre"})
	v.SetDefault("stoplist_path", "")
	v.SetDefault("block_limit", 500)
	v.SetDefault("codebook_k", 128)
	v.SetDefault("top_k", 10)
	v.SetDefault("alpha", 0.7)

	v.SetEnvPrefix("QUAVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("quaver")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// Running on pure defaults is fine; a broken file is not.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
