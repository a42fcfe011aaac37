package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"chathistory/internal/output"
	"chathistory/internal/services"
	"chathistory/pkg/historytypes"
)

const defaultResultLimit = 10

func (app *App) addHistoryCommands(rootCmd *cobra.Command) {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Manage saved conversations",
	}

	historyCmd.AddCommand(
		app.listCommand(),
		app.showCommand(),
		app.restoreCommand(),
		app.searchCommand(),
		app.exportCommand(),
		app.importCommand(),
	)
	rootCmd.AddCommand(historyCmd)
}

func (app *App) listCommand() *cobra.Command {
	var opts services.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := app.historyService()
			if err != nil {
				return err
			}

			summaries, err := history.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				app.printer.Info("No conversations found.")
				return nil
			}

			app.printer.Print(output.NewSummaryTable(app.printer, app.pathFormatter()).Render(summaries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", defaultResultLimit, "Maximum number of conversations to show")
	cmd.Flags().StringVarP(&opts.PathContains, "path", "p", "", "Filter by directory path")
	cmd.Flags().StringVarP(&opts.Contains, "contains", "c", "", "Filter conversations containing this text")
	return cmd
}

func (app *App) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <ID>",
		Short: "Show a specific conversation",
		Long:  "Show a conversation by full or partial ID. Output is rendered markdown on a color terminal and plain text otherwise.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			match, found, err := app.resolve(cmd.Context(), args[0])
			if err != nil || !found {
				return err
			}

			exporter, err := services.GetGlobalExportService()
			if err != nil {
				return err
			}

			if !app.printer.IsStylable() {
				text, err := exporter.Export(match.Record, match.Path, historytypes.ExportText)
				if err != nil {
					return err
				}
				app.printer.Print(text)
				return nil
			}

			markdown, err := exporter.Export(match.Record, match.Path, historytypes.ExportMarkdown)
			if err != nil {
				return err
			}
			app.printer.Print(app.renderMarkdown(markdown))
			return nil
		},
	}
}

func (app *App) restoreCommand() *cobra.Command {
	var destination string

	cmd := &cobra.Command{
		Use:   "restore <ID>",
		Short: "Restore a conversation to a directory",
		Long:  "Restore a conversation so it is the saved session of a directory. A conversation already saved there is backed up first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := app.destination(destination)
			if err != nil {
				return err
			}

			history, err := app.historyService()
			if err != nil {
				return err
			}
			result, err := history.Restore(cmd.Context(), args[0], dest)
			if app.reportNotFound(err, args[0]) {
				return nil
			}
			if err != nil {
				return err
			}

			app.reportReplace(result)
			app.printer.Success(fmt.Sprintf("Restored conversation %s from %s to %s",
				result.Record.ID, result.SourcePath, result.Destination))
			return nil
		},
	}

	cmd.Flags().StringVarP(&destination, "to", "t", "", "Destination directory (default: current directory)")
	return cmd
}

func (app *App) searchCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <QUERY>",
		Short: "Search conversations by content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := app.historyService()
			if err != nil {
				return err
			}

			results, err := history.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				app.printer.Info(fmt.Sprintf("No conversations found matching '%s'", args[0]))
				return nil
			}

			app.printer.Print(output.NewSummaryTable(app.printer, app.pathFormatter()).Render(results))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", defaultResultLimit, "Maximum number of results to show")
	return cmd
}

func (app *App) exportCommand() *cobra.Command {
	var (
		destination string
		formatName  string
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "export <ID>",
		Short: "Export a conversation to a file",
		Long:  "Export a conversation as json (loadable again with import), markdown or text.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := historytypes.ParseExportFormat(formatName)
			if err != nil {
				return err
			}

			match, found, err := app.resolve(cmd.Context(), args[0])
			if err != nil || !found {
				return err
			}

			exporter, err := services.GetGlobalExportService()
			if err != nil {
				return err
			}

			err = exporter.WriteExport(match.Record, match.Path, format, destination, force)
			if errors.Is(err, historytypes.ErrDestinationExists) {
				return fmt.Errorf("file %s already exists, use --force to overwrite", destination)
			}
			if err != nil {
				return err
			}

			if ext := filepath.Ext(destination); !strings.EqualFold(ext, format.Extension()) {
				app.printer.Warning(fmt.Sprintf("%s output usually uses the %s extension, got '%s'", format, format.Extension(), ext))
			}
			app.printer.Success(fmt.Sprintf("Exported conversation %s to %s", match.Record.ID, destination))
			return nil
		},
	}

	cmd.Flags().StringVarP(&destination, "output", "o", "", "Output file path")
	cmd.Flags().StringVar(&formatName, "format", string(historytypes.ExportJSON), "Export format ("+formatNames()+")")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing file")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func (app *App) importCommand() *cobra.Command {
	var destination string

	cmd := &cobra.Command{
		Use:   "import <FILE>",
		Short: "Import a json export as the conversation of a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exporter, err := services.GetGlobalExportService()
			if err != nil {
				return err
			}
			record, err := exporter.LoadExport(args[0])
			if err != nil {
				return err
			}

			dest, err := app.destination(destination)
			if err != nil {
				return err
			}

			history, err := app.historyService()
			if err != nil {
				return err
			}
			result, err := history.Import(cmd.Context(), record, dest)
			if err != nil {
				return err
			}

			app.reportReplace(result)
			app.printer.Success(fmt.Sprintf("Imported conversation %s to %s", result.Record.ID, result.Destination))
			return nil
		},
	}

	cmd.Flags().StringVarP(&destination, "to", "t", "", "Destination directory (default: current directory)")
	return cmd
}

func formatNames() string {
	names := make([]string, 0, len(historytypes.ExportFormats))
	for _, format := range historytypes.ExportFormats {
		names = append(names, string(format))
	}
	return strings.Join(names, "|")
}

// resolve looks up a conversation and reports a miss to the user. A miss is not an error.
func (app *App) resolve(ctx context.Context, fragment string) (*services.Match, bool, error) {
	history, err := app.historyService()
	if err != nil {
		return nil, false, err
	}

	match, err := history.Resolve(ctx, fragment)
	if app.reportNotFound(err, fragment) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return match, true, nil
}

func (app *App) reportNotFound(err error, fragment string) bool {
	if !errors.Is(err, historytypes.ErrNotFound) {
		return false
	}
	app.printer.Info(fmt.Sprintf("No conversation found matching '%s'", fragment))
	return true
}

func (app *App) destination(flagValue string) (string, error) {
	dest := flagValue
	if dest == "" {
		wd, err := app.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to determine current directory: %w", err)
		}
		dest = wd
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		return "", fmt.Errorf("failed to resolve destination %s: %w", dest, err)
	}
	return abs, nil
}

func (app *App) reportReplace(result *services.RestoreResult) {
	if result.BackupKey == "" {
		return
	}
	app.printer.Warning(fmt.Sprintf("Existing conversation at %s backed up to %s", result.Destination, result.BackupKey))
}

// renderMarkdown renders a markdown export for the terminal, falling back to the source text.
func (app *App) renderMarkdown(markdown string) string {
	markdownService, err := services.GetGlobalMarkdownService()
	if err != nil {
		return markdown
	}

	rendered, err := markdownService.RenderWithTheme(markdown, app.config.Theme)
	if err != nil {
		return markdown
	}
	return rendered
}
