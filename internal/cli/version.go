package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"chathistory/internal/services"
	"chathistory/internal/version"
)

func (app *App) addVersionCommand(rootCmd *cobra.Command) {
	var detailed bool

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if !detailed {
				app.printer.Println(version.GetFormattedVersion())
				return nil
			}

			app.printer.Println(version.GetDetailedVersion())
			configService, err := services.GetGlobalConfigurationService()
			if err != nil {
				return err
			}
			app.printConfigPaths(configService.GetConfigPaths())
			return nil
		},
	}

	versionCmd.Flags().BoolVar(&detailed, "detailed", false, "Show build metadata and configuration sources")
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version.GetBaseVersion()
}

func (app *App) printConfigPaths(paths services.ConfigPaths) {
	app.printer.Println("")
	app.printer.Println("Configuration:")
	app.printer.Println(fmt.Sprintf("  Database: %s", app.config.Database))
	app.printer.Println(fmt.Sprintf("  Config File: %s", describeSource(paths.ConfigFile, paths.ConfigFileLoaded)))
	app.printer.Println(fmt.Sprintf("  Config .env: %s", describeSource(paths.ConfigEnvPath, paths.ConfigEnvLoaded)))
	app.printer.Println(fmt.Sprintf("  Local .env: %s", describeSource(paths.LocalEnvPath, paths.LocalEnvLoaded)))
}

func describeSource(path string, loaded bool) string {
	switch {
	case path == "":
		return "-"
	case loaded:
		return path + " (loaded)"
	default:
		return path + " (not found)"
	}
}
