package main

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"blogmigrate/internal/config"
	"blogmigrate/internal/logger"
)

// defaultConfigFile is read from the working directory when --config is not
// given. Without it the built-in defaults apply.
const defaultConfigFile = "blogmigrate.yaml"

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		if path == "" {
			if _, err := os.Stat(defaultConfigFile); err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					c.configErr = err
					return
				}

				c.config = config.Default()

				return
			}

			path = defaultConfigFile
		}

		c.config, c.configErr = config.LoadConfig(path)
	})

	return c.config, c.configErr
}

func (c *commandContext) logger() *logger.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logger.NewLogger("info")
	}

	return logger.NewLogger(cfg.Logging.Level)
}

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "blogmigrate",
		Short:         "Re-attach captioned images to migrated blog posts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newAlignCommand(ctx))
	rootCmd.AddCommand(newDedupeCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newReportCommand(ctx))

	return rootCmd
}
