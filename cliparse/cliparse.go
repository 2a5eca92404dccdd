package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           int
	DatabaseURL    string
	DatabaseType   string
	ManagerKeySalt string
	CalcWorkers    int
	CalcQueueSize  int
}

// ParseFlags validates flags and sets port number
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	// Load .env if present; real env vars still win
	_ = godotenv.Load()

	fs := flag.NewFlagSet("crowdvote", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	// Calculation scheduler
	fs.IntVar(&cfg.CalcWorkers, "workers", 0, "Recalculation worker count")
	fs.IntVar(&cfg.CalcQueueSize, "queue", 0, "Recalculation queue size")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.ManagerKeySalt, "manager-salt", "", "Manager key salt (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3420 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, errors.New("database type must be sqlite or postgres")
	}

	if cfg.CalcWorkers == 0 {
		if s := os.Getenv("CALC_WORKERS"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return Config{}, errors.New("invalid CALC_WORKERS env variable")
			}
			cfg.CalcWorkers = n
		} else {
			cfg.CalcWorkers = 4
		}
	}
	if cfg.CalcQueueSize == 0 {
		if s := os.Getenv("CALC_QUEUE_SIZE"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return Config{}, errors.New("invalid CALC_QUEUE_SIZE env variable")
			}
			cfg.CalcQueueSize = n
		} else {
			cfg.CalcQueueSize = 256
		}
	}

	// Secrets - MUST be provided
	if cfg.ManagerKeySalt == "" {
		cfg.ManagerKeySalt = os.Getenv("MANAGER_KEY_SALT")
	}
	if cfg.ManagerKeySalt == "" {
		return Config{}, errors.New("MANAGER_KEY_SALT required")
	}

	return cfg, nil
}
