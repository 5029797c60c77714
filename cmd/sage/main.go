package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codesage/sage/internal/app"
	"github.com/codesage/sage/internal/config"
	"github.com/codesage/sage/internal/gitdiff"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		printError(err)
		stop()
		os.Exit(1)
	}
}

// openApp builds the App for a command from the config file at path.
var openApp = app.Open

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "sage",
		Short:         "Ask questions about your local codebases",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "Config file path")

	// open is deferred until a command runs so --config is parsed.
	open := func(cmd *cobra.Command) (*app.App, error) {
		return openApp(cmd.Context(), configPath)
	}

	var (
		watchMode    bool
		viaTemporal  bool
		jsonOutput   bool
		remoteSearch bool
	)

	indexCmd := &cobra.Command{
		Use:   "index [folder...]",
		Short: "Refresh the embedding stores of the given or selected folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			if viaTemporal {
				return runIndexTemporal(cmd.Context(), a, args)
			}
			if err := runIndex(cmd.Context(), a, args); err != nil {
				return err
			}
			if watchMode {
				return runWatch(cmd.Context(), a, args)
			}
			return nil
		},
	}
	indexCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Keep running and refresh folders when files change")
	indexCmd.Flags().BoolVar(&viaTemporal, "temporal", false, "Run the refresh as a Temporal workflow")
	indexCmd.MarkFlagsMutuallyExclusive("watch", "temporal")

	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the selected folders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return runAsk(cmd.Context(), a, joinArgs(args), jsonOutput)
		},
	}
	askCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the answer as JSON")

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank the files of the selected folders against a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return runSearch(cmd.Context(), a, joinArgs(args), remoteSearch, jsonOutput)
		},
	}
	searchCmd.Flags().BoolVar(&remoteSearch, "remote", false, "Search the vector mirror instead of the local stores")
	searchCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the question history",
	}
	historyListCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored questions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return runHistoryList(a, jsonOutput)
		},
	}
	historyListCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	historyShowCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored question and its answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return runHistoryShow(a, args[0])
		},
	}
	historyDeleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return runHistoryDelete(cmd.Context(), a, args[0])
		},
	}
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDeleteCmd)

	foldersCmd := &cobra.Command{
		Use:   "folders",
		Short: "Manage indexed folders",
	}
	foldersAddCmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register a folder and select it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return runFoldersAdd(a, args[0])
		},
	}
	foldersRemoveCmd := &cobra.Command{
		Use:   "remove <path>",
		Short: "Unregister a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return runFoldersRemove(a, args[0])
		},
	}
	foldersListCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return runFoldersList(a)
		},
	}
	foldersSelectCmd := &cobra.Command{
		Use:   "select <path...>",
		Short: "Select the folders questions are answered from",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return runFoldersSelect(a, args)
		},
	}
	foldersCmd.AddCommand(foldersAddCmd, foldersRemoveCmd, foldersListCmd, foldersSelectCmd)

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change retrieval settings",
	}
	settingsShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			printSettings(cfg.Settings)
			return nil
		},
	}
	settingsSetCmd := &cobra.Command{
		Use:   "set <key=value...>",
		Short: "Change settings; lists are comma-separated",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsSet(configPath, args)
		},
	}
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze [base]",
		Short: "Review the changes of the selected folder against a git revision",
		Long: "Review every changed file of the single selected folder. base is a git revision;\n" +
			"\"" + gitdiff.Staged + "\" (the default) reviews the staged changes.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base := gitdiff.Staged
			if len(args) == 1 {
				base = args[0]
			}
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return runAnalyze(cmd.Context(), a, base)
		},
	}

	translateCmd := &cobra.Command{
		Use:   "translate <file>",
		Short: "Print a file with its non-English lines translated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return runTranslate(cmd.Context(), a, args[0])
		},
	}

	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Query the citation graph",
	}
	graphCitedCmd := &cobra.Command{
		Use:   "cited <folder> <file>",
		Short: "List the questions whose answers used a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return runGraphCited(cmd.Context(), a, args[0], args[1])
		},
	}
	graphCmd.AddCommand(graphCitedCmd)

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			printProviders()
		},
	}

	rootCmd.AddCommand(indexCmd, askCmd, searchCmd, historyCmd, foldersCmd, settingsCmd,
		analyzeCmd, translateCmd, graphCmd, providersCmd)
	return rootCmd
}
