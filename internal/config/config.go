package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"tikka/internal/indexer"
	"tikka/internal/ledger"
	"tikka/internal/logger"
	"tikka/internal/oracle"
	"tikka/internal/raffle"
	"tikka/internal/storage"
)

const EnvPrefix = "RAFFLE"

var ErrInvalid = errors.New("config: invalid")

type StorageConfig struct {
	Driver storage.Driver `yaml:"driver" split_words:"true"`
	Path   string         `yaml:"path" split_words:"true"`
}

type ContractConfig struct {
	Escrow           ledger.Address          `yaml:"escrow" split_words:"true"`
	ZeroTicketPolicy raffle.ZeroTicketPolicy `yaml:"zeroTicketPolicy" split_words:"true"`
}

type OracleConfig struct {
	Account      ledger.Address `yaml:"account" split_words:"true"`
	PollInterval time.Duration  `yaml:"pollInterval" split_words:"true"`
	BatchSize    int            `yaml:"batchSize" split_words:"true"`
}

type IndexerConfig struct {
	Path string `yaml:"path" split_words:"true"`
}

type MetricsConfig struct {
	Address string `yaml:"address" split_words:"true"`
}

type Config struct {
	Storage  StorageConfig        `yaml:"storage" split_words:"true"`
	Log      logger.Configuration `yaml:"log" split_words:"true"`
	Contract ContractConfig       `yaml:"contract" split_words:"true"`
	Oracle   OracleConfig         `yaml:"oracle" split_words:"true"`
	Indexer  IndexerConfig        `yaml:"indexer" split_words:"true"`
	Metrics  MetricsConfig        `yaml:"metrics" split_words:"true"`
}

func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: storage.SqliteDriver,
			Path:   "raffle.db",
		},
		Log: logger.Configuration{
			Level:   "info",
			Console: true,
		},
		Contract: ContractConfig{
			Escrow:           raffle.DefaultEscrow,
			ZeroTicketPolicy: raffle.ZeroTicketsCancel,
		},
		Oracle: OracleConfig{
			PollInterval: oracle.DefaultPollInterval,
			BatchSize:    indexer.DefaultBatchSize,
		},
		Indexer: IndexerConfig{
			Path: "raffle-views.db",
		},
	}
}

// Load layers the defaults, the YAML file at configFile, the dotenv file at
// envFile and finally RAFFLE_* environment variables. Empty paths and a
// missing dotenv file are skipped. Variables already set in the environment
// win over the dotenv file.
func Load(configFile, envFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(buf))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: parse %s: %w", configFile, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Contract.Escrow, err = normalizeAddress("contract.escrow", c.Contract.Escrow); err != nil {
		return err
	}
	if c.Oracle.Account, err = normalizeAddress("oracle.account", c.Oracle.Account); err != nil {
		return err
	}
	return nil
}

func normalizeAddress(field string, address ledger.Address) (ledger.Address, error) {
	if address == "" {
		return "", nil
	}
	normalized, err := ledger.NormalizeAddress(string(address))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalid, field, err)
	}
	return normalized, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Storage.Driver != storage.SqliteDriver && c.Storage.Driver != storage.PebbleDriver:
		return fmt.Errorf("%w: storage.driver %q", ErrInvalid, c.Storage.Driver)
	case c.Storage.Path == "":
		return fmt.Errorf("%w: storage.path is empty", ErrInvalid)
	case c.Contract.Escrow == "":
		return fmt.Errorf("%w: contract.escrow is empty", ErrInvalid)
	case !c.Contract.ZeroTicketPolicy.Valid():
		return fmt.Errorf("%w: contract.zeroTicketPolicy %q", ErrInvalid, c.Contract.ZeroTicketPolicy)
	case c.Oracle.PollInterval <= 0:
		return fmt.Errorf("%w: oracle.pollInterval must be positive", ErrInvalid)
	case c.Oracle.BatchSize <= 0:
		return fmt.Errorf("%w: oracle.batchSize must be positive", ErrInvalid)
	case c.Indexer.Path == "":
		return fmt.Errorf("%w: indexer.path is empty", ErrInvalid)
	}
	return nil
}

// ContractOptions turns the contract section into raffle options.
func (c *Config) ContractOptions() []raffle.Option {
	return []raffle.Option{
		raffle.WithEscrowAccount(c.Contract.Escrow),
		raffle.WithZeroTicketPolicy(c.Contract.ZeroTicketPolicy),
	}
}
