// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package clinicalner

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/clinicalner/ai"
	"github.com/poiesic/clinicalner/artifact"
	"github.com/poiesic/clinicalner/corpus"
	"github.com/poiesic/clinicalner/ingest"
	"github.com/poiesic/clinicalner/storage/postgres"
)

// EnvPrefix is the prefix of the database environment variables (DB_HOST, ...).
const EnvPrefix = "DB"

// Config is the complete configuration of the pipeline.
//
// Values are resolved in order: DefaultConfig, then an optional TOML file,
// then DB_* environment variables for the database.
type Config struct {
	Database  postgres.Config `toml:"database"`
	AI        ai.Config       `toml:"ai"`
	Ingest    IngestConfig    `toml:"ingest"`
	Extract   ExtractConfig   `toml:"extract"`
	Reconcile ReconcileConfig `toml:"reconcile"`

	// StateDir holds the checkpoint and ledger store. Empty disables both.
	StateDir string `toml:"state_dir"`
}

// IngestConfig configures bulk loading of the corpus.
type IngestConfig struct {
	Dataset   string `toml:"dataset"`
	ChunkSize int    `toml:"chunk_size"`
}

// ExtractConfig configures a corpus processing run.
type ExtractConfig struct {
	OutputDir      string `toml:"output_dir"`
	BatchSize      int    `toml:"batch_size"`
	ReportInterval int    `toml:"report_interval"`
}

// ReconcileConfig configures metadata reconciliation.
type ReconcileConfig struct {
	// InputDir defaults to the extract output directory.
	InputDir    string `toml:"input_dir"`
	LoadWorkers int    `toml:"load_workers"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	extract := corpus.DefaultConfig()
	return &Config{
		Database: *postgres.DefaultConfig(),
		AI:       *ai.DefaultConfig(),
		Ingest: IngestConfig{
			Dataset:   ingest.DefaultDataset,
			ChunkSize: ingest.DefaultChunkSize,
		},
		Extract: ExtractConfig{
			OutputDir:      extract.OutputDir,
			BatchSize:      extract.BatchSize,
			ReportInterval: extract.ReportInterval,
		},
	}
}

// LoadConfig builds a Config from defaults, the TOML file at path (if not
// empty) and the environment. The result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.Database.LoadFromEnv(EnvPrefix); err != nil {
		return nil, err
	}
	if cfg.AI.Token == "" || cfg.AI.Token == "none" {
		if token := os.Getenv("OPENAI_API_KEY"); token != "" {
			cfg.AI.Token = token
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and fills derived defaults.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.AI.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Ingest.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("ingest: %w", ingest.ErrInvalidChunkSize))
	}
	if c.Extract.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("extract: %w", artifact.ErrInvalidBatchSize))
	}
	if c.Extract.OutputDir == "" {
		errs = append(errs, fmt.Errorf("extract: %w", artifact.ErrOutputDirRequired))
	}
	if c.Reconcile.InputDir == "" {
		c.Reconcile.InputDir = c.Extract.OutputDir
	}
	return errors.Join(errs...)
}

// Marshal renders the configuration as TOML, for writing a starter file.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
