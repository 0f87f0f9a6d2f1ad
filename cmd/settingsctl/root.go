package main

import (
	"fmt"

	"github.com/goliatone/go-settings/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// cli carries flag values and the state built by the root pre-run hook.
type cli struct {
	configPath string
	schemaPath string
	driver     string
	dsn        string
	tenant     string
	location   string
	jsonOut    bool
	verbose    bool

	level zap.AtomicLevel
	cfg   config.Config
	app   *app
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "settingsctl",
		Short:         "Inspect and edit schema driven settings modules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return c.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default: ./settings.yaml when present)")
	flags.StringVar(&c.schemaPath, "schema", "", "schema file (yaml, toml or json)")
	flags.StringVar(&c.driver, "store", "", "store driver: memory, sqlite or postgres")
	flags.StringVar(&c.dsn, "dsn", "", "store data source name")
	flags.StringVar(&c.tenant, "tenant", "", "tenant whose scope is read and written")
	flags.StringVarP(&c.location, "location", "l", "", "location name (default: global fields)")
	flags.BoolVar(&c.jsonOut, "json", false, "output as JSON")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newRenderCommand(c),
		newGetCommand(c),
		newSetCommand(c),
		newResetCommand(c),
		newExportCommand(c),
		newSchemaCommand(c),
		newServeCommand(c),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath, ".")
	if err != nil {
		return err
	}
	if c.schemaPath != "" {
		cfg.SchemaPath = c.schemaPath
	}
	if c.driver != "" {
		cfg.Store.Driver = c.driver
	}
	if c.dsn != "" {
		cfg.Store.DSN = c.dsn
	}
	if c.tenant != "" {
		cfg.Scope.TenantID = c.tenant
	}
	if c.verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	logger, err := c.newLogger()
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	c.app, err = openApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	return nil
}

// newLogger writes JSON to stderr so command output on stdout stays clean.
func (c *cli) newLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stderr"}
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if c.cfg.Verbose {
		zc.Level.SetLevel(zapcore.DebugLevel)
	}
	c.level = zc.Level
	return zc.Build()
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	_ = c.app.logger.Sync()
	err := c.app.Close()
	c.app = nil
	return err
}
