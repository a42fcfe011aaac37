// Package cli provides command-line interface setup for chathistory.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"chathistory/internal/database"
	"chathistory/internal/logger"
	"chathistory/internal/output"
	"chathistory/internal/services"
	"chathistory/internal/store"
	"chathistory/pkg/historytypes"
)

// App represents the chathistory CLI application
type App struct {
	Out io.Writer
	Err io.Writer

	// OpenDatabase opens the substrate at the configured database path.
	OpenDatabase func(path string) (historytypes.Substrate, error)
	// Getwd supplies the default destination of restore and import.
	Getwd func() (string, error)
	// ConfigOptions are passed to the configuration service of every run.
	ConfigOptions []services.ConfigOption
	// StoreOptions are passed to the store opened for history commands.
	StoreOptions []store.Option

	config  services.Config
	theme   *services.Theme
	printer *output.Printer
	db      historytypes.Substrate
	history *services.HistoryService
}

// NewApp creates a new chathistory CLI application writing to the process streams.
func NewApp() *App {
	return &App{
		Out: os.Stdout,
		Err: os.Stderr,
		OpenDatabase: func(path string) (historytypes.Substrate, error) {
			db, err := database.OpenSQLite(path)
			if err != nil {
				return nil, err
			}
			return db, nil
		},
		Getwd: os.Getwd,
	}
}

// CreateRootCommand creates and configures the root command
func (app *App) CreateRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chathistory",
		Short: "Browse, search, restore and export saved chat conversations",
		Long: `chathistory works with the conversations a chat session saves per working directory.
It lists and searches them, shows or exports a transcript, and restores a conversation
into another directory after backing up whatever was saved there.`,
		SilenceErrors:     true,
		PersistentPreRunE: app.setup,
	}

	// Add global flags
	flags := rootCmd.PersistentFlags()
	flags.String(services.KeyDatabase, "", "Path of the conversation database")
	flags.String(services.KeyTheme, "", "Color theme (default|dark|light|plain)")
	flags.String(services.KeyLogLevel, "", "Set log level (debug|info|warn|error) [default: warn]")
	flags.String(services.KeyLogFile, "", "Write logs to file instead of stderr")
	flags.Bool(services.KeyPlain, false, "Disable colors and terminal markdown rendering")

	rootCmd.SetOut(app.Out)
	rootCmd.SetErr(app.Err)

	app.addHistoryCommands(rootCmd)
	app.addVersionCommand(rootCmd)

	return rootCmd
}

// Run executes the CLI with args and returns the process exit code.
func (app *App) Run(args []string) int {
	rootCmd := app.CreateRootCommand()
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	app.close()

	if err != nil {
		app.errorPrinter().Error(err.Error())
		return 1
	}
	return 0
}

// setup resolves configuration, logging and styling before any command runs.
func (app *App) setup(cmd *cobra.Command, _ []string) error {
	// Arguments are valid by now; runtime failures should not print usage
	cmd.SilenceUsage = true

	registry := services.GetGlobalRegistry()

	configService := services.NewConfigurationService(app.ConfigOptions...)
	if err := configService.BindFlags(cmd.Root().PersistentFlags()); err != nil {
		return err
	}
	registry.ReplaceService(configService)

	if err := registry.InitializeAll(); err != nil {
		return err
	}

	cfg, err := configService.Config()
	if err != nil {
		return err
	}
	app.config = cfg

	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return err
	}

	themeService, err := services.GetGlobalThemeService()
	if err != nil {
		return err
	}
	app.theme = themeService.GetThemeByName(cfg.Theme)

	mode := output.ModeAuto
	if cfg.Plain {
		mode = output.ModePlain
	}
	app.printer = output.NewPrinter(
		output.WithWriter(app.Out),
		output.WithStyles(app.theme),
		output.WithMode(mode),
	)

	paths := configService.GetConfigPaths()
	logger.Debug("Configured chathistory", "database", cfg.Database, "theme", cfg.Theme, "plain", cfg.Plain,
		"config_file", paths.ConfigFile, "config_file_loaded", paths.ConfigFileLoaded,
		"local_env_loaded", paths.LocalEnvLoaded)
	return nil
}

// historyService opens the database on first use.
func (app *App) historyService() (*services.HistoryService, error) {
	if app.history != nil {
		return app.history, nil
	}

	db, err := app.OpenDatabase(app.config.Database)
	if err != nil {
		return nil, err
	}
	app.db = db

	history := services.NewHistoryService(store.New(db, app.StoreOptions...))
	if err := history.Initialize(); err != nil {
		return nil, err
	}

	app.history = history
	return history, nil
}

// close releases the database and the log file opened for one run.
func (app *App) close() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			logger.Warn("Failed to close database", "error", err)
		}
		app.db = nil
		app.history = nil
	}
	if err := logger.Close(); err != nil {
		app.errorPrinter().Warning(fmt.Sprintf("Failed to close log file: %v", err))
	}
}

func (app *App) errorPrinter() *output.Printer {
	return output.NewPrinter(output.WithWriter(app.Err), output.PlainText())
}

func (app *App) pathFormatter() output.PathFormatter {
	return output.PathFormatter{HomeDir: app.config.Home}
}
