package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

// Archive layouts accepted by ARCHIVE_FORMAT.
const (
	ArchiveDir = "dir"
	ArchiveZip = "zip"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	InputDir      string
	OutputDir     string
	WorkDir       string
	ArchiveFormat string
	Regions       []string
	Start         domain.Month
	End           domain.Month
	FilePrefix    string
	Workers       int
	Policy        domain.QualityPolicy

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	LedgerPath string
	Resume     bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	start, err := parseMonth("START_YEAR", "START_MONTH", 1990, 1)
	if err != nil {
		return nil, err
	}
	end, err := parseMonth("END_YEAR", "END_MONTH", 1990, 12)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("END_YEAR/END_MONTH %s is before START_YEAR/START_MONTH %s", end, start)
	}

	workers, err := parsePositiveInt("WORKERS", runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	resume, err := parseBool("RESUME", false)
	if err != nil {
		return nil, err
	}

	policy := domain.DefaultPolicy()
	if path := os.Getenv("QUALITY_CONFIG"); path != "" {
		if policy, err = LoadPolicy(path); err != nil {
			return nil, err
		}
	}
	if s := os.Getenv("CHUNK_SIZE"); s != "" {
		size, err := strconv.ParseFloat(s, 64)
		if err != nil || size <= 0 {
			return nil, errors.New("invalid CHUNK_SIZE")
		}
		policy.ChunkSize = size
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("quality policy: %w", err)
	}

	cfg := &Config{
		InputDir:        os.Getenv("INPUT_DIR"),
		OutputDir:       os.Getenv("OUTPUT_DIR"),
		WorkDir:         envOrDefault("WORK_DIR", os.TempDir()),
		ArchiveFormat:   strings.ToLower(envOrDefault("ARCHIVE_FORMAT", ArchiveDir)),
		Regions:         parseList(envOrDefault("REGIONS", "at,gm,in,pa")),
		Start:           start,
		End:             end,
		FilePrefix:      envOrDefault("FILE_PREFIX", "gtspp"),
		Workers:         workers,
		Policy:          policy,
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		KafkaBrokers:    parseList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      envOrDefault("KAFKA_TOPIC", "profile-tiles"),
		LedgerPath:      os.Getenv("LEDGER_PATH"),
		Resume:          resume,
	}

	if cfg.InputDir == "" {
		return nil, errors.New("INPUT_DIR is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if cfg.ArchiveFormat != ArchiveDir && cfg.ArchiveFormat != ArchiveZip {
		return nil, fmt.Errorf("invalid ARCHIVE_FORMAT %q: want %s or %s", cfg.ArchiveFormat, ArchiveDir, ArchiveZip)
	}
	if len(cfg.Regions) == 0 {
		return nil, errors.New("REGIONS is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.Resume && cfg.LedgerPath == "" {
		return nil, errors.New("RESUME requires LEDGER_PATH")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseList splits a comma-separated value, dropping empty entries.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

func parseMonth(yearKey, monthKey string, year, month int) (domain.Month, error) {
	y, err := parsePositiveInt(yearKey, year)
	if err != nil {
		return domain.Month{}, err
	}
	m, err := parsePositiveInt(monthKey, month)
	if err != nil {
		return domain.Month{}, err
	}
	if m > 12 {
		return domain.Month{}, fmt.Errorf("invalid %s", monthKey)
	}
	return domain.NewMonth(y, time.Month(m)), nil
}
