package config

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ErrInvalid marks configuration problems that abort the run before any work
// starts.
var ErrInvalid = errors.New("invalid configuration")

// Config struct for environment variables, prefix ENAFETCH_.
type Config struct {
	Input         string `envconfig:"INPUT" required:"true"`
	AccessionType string `envconfig:"ACCESSION_TYPE" required:"true"`
	OutputDir     string `envconfig:"OUTPUT_DIR" default:"."`
	FileType      string `envconfig:"FILE_TYPE" default:"fastq"`

	CreateStudyFolders bool `envconfig:"CREATE_STUDY_FOLDERS"`
	WriteMetadata      bool `envconfig:"WRITE_METADATA"`
	WriteExcel         bool `envconfig:"WRITE_EXCEL"`
	DownloadFiles      bool `envconfig:"DOWNLOAD_FILES" default:"true"`

	Retries                int           `envconfig:"RETRIES" default:"5"`
	MaxParallel            int           `envconfig:"MAX_PARALLEL" default:"5"`
	RateLimit              float64       `envconfig:"RATE_LIMIT" default:"10"`
	RateBurst              int           `envconfig:"RATE_BURST" default:"5"`
	HTTPTimeout            time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	RetryBackoff           time.Duration `envconfig:"RETRY_BACKOFF" default:"1s"`
	RetryMaxBackoff        time.Duration `envconfig:"RETRY_MAX_BACKOFF" default:"1m"`
	ChecksumSeparateBudget bool          `envconfig:"CHECKSUM_SEPARATE_BUDGET"`

	LedgerPath        string `envconfig:"LEDGER_PATH"`
	PortalBaseURL     string `envconfig:"PORTAL_BASE_URL" default:"https://www.ebi.ac.uk/ena/portal/api"`
	LogLevel          string `envconfig:"LOG_LEVEL" default:"INFO"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`

	Metrics struct {
		Enabled     bool   `split_words:"true"`
		BindAddress string `split_words:"true" default:"0.0.0.0:9090"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("enafetch", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the semantic constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.AccessionType {
	case "run", "sample", "study":
	default:
		return fmt.Errorf("%w: accession type must be run, sample or study, got %q", ErrInvalid, c.AccessionType)
	}

	switch c.FileType {
	case "fastq", "submitted", "sra":
	default:
		return fmt.Errorf("%w: file type must be fastq, submitted or sra, got %q", ErrInvalid, c.FileType)
	}

	if info, err := os.Stat(c.Input); err != nil || info.IsDir() {
		return fmt.Errorf("%w: input file of accessions does not exist or is not a file: %s", ErrInvalid, c.Input)
	}

	if c.Retries < 0 {
		return fmt.Errorf("%w: retries must be nonnegative, got %d", ErrInvalid, c.Retries)
	}

	if c.MaxParallel < 1 {
		return fmt.Errorf("%w: max parallel must be positive, got %d", ErrInvalid, c.MaxParallel)
	}

	return nil
}

// LedgerFile returns the ledger location, defaulting to a hidden database
// inside the output directory so distinct output directories never share
// progress state.
func (c *Config) LedgerFile() string {
	if c.LedgerPath != "" {
		return c.LedgerPath
	}

	return filepath.Join(c.OutputDir, ".enafetch.db")
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ReadAccessions reads one accession per line from path, trimming whitespace
// and dropping empty lines.
func ReadAccessions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read accessions: %v", ErrInvalid, err)
	}
	defer f.Close()

	var accessions []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		accessions = append(accessions, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: cannot read accessions: %v", ErrInvalid, err)
	}

	return accessions, nil
}
