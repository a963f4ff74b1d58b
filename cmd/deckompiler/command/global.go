package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhmodding/deckompiler/pkg/common/log"
	"github.com/rhmodding/deckompiler/pkg/config"
)

const (
	FormatJSON  = "json"
	FormatTable = "table"
)

type GlobalFlags struct {
	ConfigFile string
	Debug      bool
	Format     string
}

// Env is the state shared by every command of one run
type Env struct {
	Config *config.Config
	Logger log.Logger
}

var env *Env

// AddGlobalFlags registers the flags every command accepts
func AddGlobalFlags(cmd *cobra.Command, flags *GlobalFlags) {
	cmd.PersistentFlags().StringVar(&flags.ConfigFile, "config", "", "YAML config file")
	cmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.Format, "format", FormatTable, "output format: table or json")
}

// Init loads the config and sets up logging. Flags override the file.
func Init(flags *GlobalFlags) error {
	switch strings.ToLower(flags.Format) {
	case FormatJSON, FormatTable:
	default:
		return fmt.Errorf("unknown output format %q", flags.Format)
	}

	cfg := config.NewDefaultConfig()
	if flags.ConfigFile != "" {
		loaded, err := config.LoadConfig(flags.ConfigFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	logger := log.GetDefaultLogger()
	logger.SetLevel(cfg.Level())
	if flags.Debug {
		logger.SetLevel(log.LevelDebug)
	}

	env = &Env{Config: cfg, Logger: logger}
	return nil
}

func mustGetEnv(cmd *cobra.Command) *Env {
	if env == nil {
		cmdFailedf(cmd, "deckompiler was not initialized")
	}
	return env
}

func IsFormatJSON(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetString("format")
	if err != nil {
		return false
	}
	return strings.ToLower(v) == FormatJSON
}
