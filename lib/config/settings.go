package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/artie-labs/warehouse/lib/config/constants"
)

type Settings struct {
	Config         Config
	VerboseLogging bool
	// Force runs the batch even if it is still marked as running.
	Force bool
	// Cron is a cron spec; when set the process stays up and runs on that schedule.
	Cron string
}

// LoadSettings will take the flags and then parse, loadConfig is optional for testing purposes.
func LoadSettings(args []string, loadConfig bool) (*Settings, error) {
	var opts struct {
		ConfigFilePath string `short:"c" long:"config" description:"path to the config file"`
		EnvFilePath    string `long:"env-file" description:"path to a .env file" default:".env"`
		Verbose        bool   `short:"v" long:"verbose" description:"debug logging" optional:"true"`
		Force          bool   `long:"force" description:"run even if the batch is already marked as running"`
		Stages         string `long:"stages" description:"comma separated list of stages to run (extract,landing,warehouse)"`
		Cron           string `long:"cron" description:"cron spec to run the pipeline on a schedule"`
	}

	if _, err := flags.ParseArgs(&opts, args); err != nil {
		return nil, fmt.Errorf("failed to parse args: %w", err)
	}

	settings := &Settings{
		VerboseLogging: opts.Verbose,
		Force:          opts.Force,
		Cron:           opts.Cron,
	}

	if loadConfig {
		if err := godotenv.Load(opts.EnvFilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}

		config, err := readFileToConfig(opts.ConfigFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		if opts.Stages != "" {
			config.Stages = parseStages(opts.Stages)
		}

		if err = config.Validate(); err != nil {
			return nil, fmt.Errorf("failed to validate config: %w", err)
		}

		settings.Config = *config
	}

	return settings, nil
}

func parseStages(value string) []constants.StageKind {
	var stages []constants.StageKind
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			stages = append(stages, constants.StageKind(strings.ToLower(part)))
		}
	}
	return stages
}
