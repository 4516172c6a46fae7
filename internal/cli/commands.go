package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the command line. The run history is closed on every exit
// path, including failed commands.
func Execute() error {
	return run(newApp(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(a *app, args []string, stdout, stderr io.Writer) (err error) {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer func() {
		err = errors.Join(err, a.close())
	}()
	return root.Execute()
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stockanalyzer",
		Short: "Stock Analyzer AI - AI-powered stock newsletters",
		Long: `Stock Analyzer AI retrieves historical stock data and relevant news, then lets a crew
of language-model agents analyse the price trend and the news sentiment and write a newsletter.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			if err := a.init(); err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newAnalyzeCmd(a))
	rootCmd.AddCommand(newScheduleCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newVersionCmd(a))

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log every agent step")

	return rootCmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Stock Analyzer AI %s\n", Version)
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Show, validate and change the Stock Analyzer AI configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			DisplayConfig(cmd.OutOrStdout(), a.config(), a.manager.Path())
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and secrets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cmd, a)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one configuration value, e.g. set model gpt-4o-mini",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.manager.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), completedStyle.Render(fmt.Sprintf("✅ %s updated", args[0])))
			return nil
		},
	})

	return configCmd
}

func validateConfig(cmd *cobra.Command, a *app) error {
	out := cmd.OutOrStdout()
	cfg := a.config()

	fmt.Fprint(out, "⚙️  Checking configuration values... ")
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(out, "❌")
		return err
	}
	fmt.Fprintln(out, "✅")

	fmt.Fprint(out, "📁 Checking directories... ")
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintln(out, "❌")
		return fmt.Errorf("directory validation failed: %w", err)
	}
	fmt.Fprintln(out, "✅")

	fmt.Fprint(out, "🔑 Checking API keys... ")
	if err := cfg.RequireSecrets(); err != nil {
		fmt.Fprintln(out, "❌")
		return err
	}
	fmt.Fprintln(out, "✅")

	fmt.Fprintln(out, completedStyle.Render("✅ Configuration validation completed successfully!"))
	return nil
}
