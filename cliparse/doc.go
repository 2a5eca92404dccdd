// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file in the working directory is loaded first (via godotenv);
real environment variables take precedence over it, and CLI flags take
precedence over both.

# Config Fields

  - Port: Server listen port (default: 3420)
  - DatabaseURL: Database connection string (required)
  - DatabaseType: "sqlite" or "postgres" (default: sqlite)
  - ManagerKeySalt: Secret for manager key HMAC (required)
  - CalcWorkers: Recalculation worker count (default: 4)
  - CalcQueueSize: Recalculation queue size (default: 256)

# CLI Flags

	-p             Server port
	-d             Database URL
	-t             Database type
	-workers       Recalculation worker count
	-queue         Recalculation queue size
	-manager-salt  Manager key salt

# Environment Variables

	PORT             → -p
	DATABASE_URL     → -d
	DATABASE_TYPE    → -t
	CALC_WORKERS     → -workers
	CALC_QUEUE_SIZE  → -queue
	MANAGER_KEY_SALT → -manager-salt

# Validation

ParseFlags returns an error if required values are missing:

  - DATABASE_URL must be provided
  - MANAGER_KEY_SALT must be provided
  - DATABASE_TYPE must be sqlite or postgres when set
*/
package cliparse
