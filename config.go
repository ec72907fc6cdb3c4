package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tenderbench/internal/cart"
)

// Config is the server configuration. Values are layered: defaults, then
// the YAML file, then TENDER_* environment variables (a .env file fills in
// unset ones), then command line flags.
type Config struct {
	Port              int     `yaml:"port"`
	DBPath            string  `yaml:"db_path"`
	MinScore          float64 `yaml:"min_score"`
	AutopickThreshold float64 `yaml:"autopick_threshold"`
	OfferLimit        int     `yaml:"offer_limit"`
	Locale            string  `yaml:"locale"`
	SeedDemo          bool    `yaml:"seed_demo"`
	APIKeyHash        string  `yaml:"api_key_hash"`
	RateLimit         int     `yaml:"rate_limit"`
	Dictionary        string  `yaml:"dictionary"`
	UnknownTotals     string  `yaml:"unknown_totals"`

	// GenKey asks main to print a fresh API key and exit.
	GenKey bool `yaml:"-"`
}

func defaultConfig() Config {
	return Config{
		Port:              9000,
		DBPath:            "tenderbench.db",
		MinScore:          0.2,
		AutopickThreshold: 0.35,
		OfferLimit:        30,
		Locale:            "ru",
		RateLimit:         300,
		Dictionary:        "dictionary.json",
		UnknownTotals:     "zero",
	}
}

// UnknownTotalPolicy maps the unknown_totals setting onto the cart policy.
func (c Config) UnknownTotalPolicy() cart.UnknownTotalPolicy {
	if c.UnknownTotals == "exclude" {
		return cart.ExcludeUnknown
	}
	return cart.ZeroFillUnknown
}

func (c Config) validate() error {
	var errs []string
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port %d out of range", c.Port))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, "db_path is empty")
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		errs = append(errs, "min_score must be between 0 and 1")
	}
	if c.AutopickThreshold < 0 || c.AutopickThreshold > 1 {
		errs = append(errs, "autopick_threshold must be between 0 and 1")
	}
	if c.OfferLimit <= 0 {
		errs = append(errs, "offer_limit must be positive")
	}
	if c.UnknownTotals != "zero" && c.UnknownTotals != "exclude" {
		errs = append(errs, `unknown_totals must be "zero" or "exclude"`)
	}
	if len(errs) > 0 {
		return errors.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// loadConfig builds the configuration from args (without the program name).
// lookupEnv is os.LookupEnv outside tests.
func loadConfig(args []string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("tenderbench", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "YAML config file")
	envFile := fs.String("env", ".env", "dotenv file with TENDER_* variables")
	port := fs.Int("port", cfg.Port, "HTTP port")
	dbPath := fs.String("db", cfg.DBPath, "SQLite database path")
	seedDemo := fs.Bool("seed-demo", false, "load demo suppliers and a sample tender into an empty database")
	fs.BoolVar(&cfg.GenKey, "gen-key", false, "print a new API key and its bcrypt hash, then exit")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", *configPath, err)
		}
	}

	dotenv, err := godotenv.Read(*envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read %s: %w", *envFile, err)
	}
	env := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(&cfg, env); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "db":
			cfg.DBPath = *dbPath
		case "seed-demo":
			cfg.SeedDemo = *seedDemo
		}
	})
	return cfg, cfg.validate()
}

func applyEnv(cfg *Config, env func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := env(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []string
	num := func(key string, dst *float64) {
		if v, ok := env(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, key+" must be a number")
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := env(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, key+" must be an integer")
				return
			}
			*dst = n
		}
	}

	integer("TENDER_PORT", &cfg.Port)
	str("TENDER_DB_PATH", &cfg.DBPath)
	num("TENDER_MIN_SCORE", &cfg.MinScore)
	num("TENDER_AUTOPICK_THRESHOLD", &cfg.AutopickThreshold)
	integer("TENDER_OFFER_LIMIT", &cfg.OfferLimit)
	str("TENDER_LOCALE", &cfg.Locale)
	str("TENDER_API_KEY_HASH", &cfg.APIKeyHash)
	integer("TENDER_RATE_LIMIT", &cfg.RateLimit)
	str("TENDER_DICTIONARY", &cfg.Dictionary)
	str("TENDER_UNKNOWN_TOTALS", &cfg.UnknownTotals)
	if v, ok := env("TENDER_SEED_DEMO"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, "TENDER_SEED_DEMO must be a boolean")
		} else {
			cfg.SeedDemo = b
		}
	}
	if len(errs) > 0 {
		return errors.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}
