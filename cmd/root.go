package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loog-project/prefwatch/internal/defaults"
	"github.com/loog-project/prefwatch/internal/report"
	"github.com/loog-project/prefwatch/internal/service"
	"github.com/loog-project/prefwatch/internal/store"
	bboltStore "github.com/loog-project/prefwatch/internal/store/bbolt"
	"github.com/loog-project/prefwatch/internal/ui"
	"github.com/loog-project/prefwatch/internal/util"
	"github.com/loog-project/prefwatch/internal/watch"
)

var (
	// persistent flags
	cfgFile          string
	enableDebugMode  bool
	truncateDebugLog bool
	filterExpr       string
	outputFormat     string

	// local flags
	outputFile    string
	noDurableSync bool
	disableCache  bool
	pollInterval  time.Duration
	parallelism   int
	headlessMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "prefwatch [FLAGS] [DOMAINS...]",
	Short: "Watches macOS preference domains for changes",
	Long: `prefwatch captures the macOS user defaults once per interval and prints every
key path that was added, removed or modified since the previous capture. All
changes are recorded in a revision file that can be inspected later with the
history command. Without arguments every domain is watched.`,
	Args:              cobra.ArbitraryArgs,
	ValidArgsFunction: domainCompletion,
	PreRunE:           validateArgsAndFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), args)
	},
}

var setupLog = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
	Timestamp().
	Caller().
	Logger()

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	cobra.OnInitialize(initConfig)

	// global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.prefwatch.yaml)")
	rootCmd.PersistentFlags().BoolVar(&enableDebugMode, "debug", false,
		"Enable debug mode, which will print additional information to the debug.log file")
	rootCmd.PersistentFlags().BoolVar(&truncateDebugLog, "truncate-debug", false,
		"Truncate the debug.log file on startup, if it exists")
	rootCmd.PersistentFlags().StringVarP(&filterExpr, "filter", "f", util.DefaultFilter,
		"Filter expression to select which changes to report")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", string(report.FormatText),
		"Output format of reported changes: text, yaml or debug")

	// prefwatch command flags
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "",
		"Path to the revision file (default: temporary file)")
	rootCmd.Flags().DurationVarP(&pollInterval, "interval", "i", watch.DefaultInterval,
		"Time between two captures")
	rootCmd.Flags().IntVar(&parallelism, "parallelism", 8,
		"Number of domains exported concurrently")
	rootCmd.Flags().BoolVarP(&headlessMode, "headless", "H", false,
		"Run in headless mode, without TUI. Changes are written to stdout.")
	rootCmd.Flags().BoolVar(&noDurableSync, "no-durable-sync", false,
		"Skip fsync on every commit to improve throughput (unsafe on crashes)")
	rootCmd.Flags().BoolVar(&disableCache, "disable-cache", false,
		"Disable in-memory cache layer for the latest domain states")

	// allow some flags to be set via environment variables / config file
	for _, name := range []string{"debug", "truncate-debug", "filter", "format"} {
		mustBind(name, viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)))
	}
	for _, name := range []string{"interval", "parallelism", "no-durable-sync", "disable-cache"} {
		mustBind(name, viper.BindPFlag(name, rootCmd.Flags().Lookup(name)))
	}
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".prefwatch")
	}

	viper.SetEnvPrefix("PREFWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		setupLog.Info().Msgf("Using config file: %s", viper.ConfigFileUsed())
	}
}

// setupDebugLog points the global logger to debug.log when debug mode is
// enabled. The returned function closes the log file.
func setupDebugLog() func() {
	if !viper.GetBool("debug") {
		// by default, we shouldn't log anything as this would break our TUI.
		log.Logger = zerolog.Nop()
		return func() {}
	}

	setupLog.Info().Msg("Debug mode is enabled, setting up debug logger...")

	fileMode := os.O_CREATE | os.O_WRONLY
	if viper.GetBool("truncate-debug") {
		fileMode |= os.O_TRUNC
	} else {
		fileMode |= os.O_APPEND
	}
	logFile, logError := os.OpenFile("debug.log", fileMode, 0o644)
	if logError != nil {
		setupLog.Fatal().Err(logError).Msg("Error opening debug log file")
	}

	log.Logger = zerolog.New(logFile).With().
		Timestamp().
		Caller().
		Logger().
		Level(zerolog.DebugLevel)

	return func() {
		if err := logFile.Close(); err != nil {
			setupLog.Error().Err(err).Msg("Error closing debug log file")
		}
	}
}

// prepareOutput compiles the filter expression and the renderer shared by all commands.
func prepareOutput(theme report.Theme) (*vm.Program, *report.Renderer, error) {
	format, err := report.ParseFormat(viper.GetString("format"))
	if err != nil {
		return nil, nil, err
	}

	expression := viper.GetString("filter")
	setupLog.Debug().
		Str("expression", expression).
		Msg("Compiling filter expression...")
	prog, err := util.CompileFilter(expression)
	if err != nil {
		return nil, nil, err
	}
	return prog, report.NewRenderer(format, theme), nil
}

// run is the main entry point for the command execution.
func run(ctx context.Context, args []string) error {
	closeLog := setupDebugLog()
	defer closeLog()

	theme := report.DarkTheme
	if headlessMode {
		theme = report.PlainTheme
	}
	prog, renderer, err := prepareOutput(theme)
	if err != nil {
		return err
	}

	if outputFile == "" {
		file, err := os.CreateTemp("", "prefwatch-output-*.prefwatch")
		if err != nil {
			setupLog.Fatal().Err(err).Msg("Cannot create temp file")
		}
		defer func() {
			_ = file.Close()
			if removeErr := os.Remove(file.Name()); removeErr != nil {
				setupLog.Err(removeErr).Msg("Cannot remove temp file")
			}
		}()
		outputFile = file.Name()

		setupLog.Info().Msgf("No output file specified, using temporary file: %s", outputFile)
	}

	setupLog.Info().
		Str("store-file", outputFile).
		Msg("Preparing revision store...")
	cs, err := bboltStore.New(outputFile, nil, !viper.GetBool("no-durable-sync"))
	if err != nil {
		setupLog.Fatal().Err(err).Msg("Error preparing store")
	}
	defer func() {
		if closeErr := cs.Close(); closeErr != nil {
			setupLog.Error().Err(closeErr).Msg("Error closing store")
		}
	}()

	trackerService := service.NewTrackerService(cs, !viper.GetBool("disable-cache"))
	defer trackerService.Close()

	if warmErr := warmCache(ctx, cs, trackerService); warmErr != nil {
		setupLog.Warn().Err(warmErr).Msg("Cannot warm state cache")
	}

	client := defaults.New(defaults.WithLogger(log.Logger))
	poller := watch.NewPoller(client, trackerService,
		watch.WithDomains(args...),
		watch.WithInterval(viper.GetDuration("interval")),
		watch.WithParallelism(viper.GetInt("parallelism")),
		watch.WithLogger(log.Logger),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if headlessMode {
		// headless mode: changes are written to stdout
		setupLog.Info().Msg("Running in headless mode, writing changes to stdout")

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()

		err := poller.Run(ctx, func(c *watch.Cycle) {
			if c.Number == 1 {
				setupLog.Info().Int("domains", len(c.Commits)+len(c.Failed)).Msg("Captured baseline")
			}
			if writeErr := renderer.Write(os.Stdout, filterCycle(prog, c)); writeErr != nil {
				log.Error().Err(writeErr).Msg("Error writing changes")
			}
		})

		setupLog.Info().Msg("Poller stopped, bye!")
		return err
	}

	// interactive mode: we will use the UI to display changes
	setupLog.Info().Msg("Running in interactive mode")

	root := ui.NewRoot(ui.DarkTheme, "prefwatch")
	program := tea.NewProgram(root, tea.WithAltScreen(), tea.WithContext(ctx))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		// wait until the program is ready to receive messages, so we don't skip any cycles
		program.Send(nil)

		if historyErr := replayHistory(cs, prog, renderer, program); historyErr != nil {
			log.Error().Err(historyErr).Msg("Error loading history from database")
		}

		_ = poller.Run(ctx, func(c *watch.Cycle) {
			rep := filterCycle(prog, c)
			rendered, renderErr := renderer.Render(rep)
			if renderErr != nil {
				log.Error().Err(renderErr).Msg("Error rendering changes")
				return
			}
			program.Send(ui.NewCycleMsg(c.Number, c.At, len(rep.Changes), c.Failed, rendered))
		})
	}()

	if _, teaErr := program.Run(); teaErr != nil && ctx.Err() == nil {
		setupLog.Error().Err(teaErr).Msg("Error running TUI program")
	}

	setupLog.Info().Msg("TUI program exited, stopping poller")
	cancel()
	wg.Wait()
	setupLog.Info().Msg("Poller stopped, bye!")

	return nil
}

// filterCycle flattens the commits of a cycle into a report, keeping only the
// changes the filter selects.
func filterCycle(prog *vm.Program, c *watch.Cycle) report.Report {
	rep := report.Report{Cycle: c.Number, Time: c.At}
	for _, commit := range c.Commits {
		kept, err := util.FilterChanges(prog, commit.Domain, commit.Changes)
		if err != nil {
			log.Error().Err(err).Str("domain", commit.Domain).Msg("Error executing filter expression")
			continue
		}
		rep.Changes = append(rep.Changes, kept...)
	}
	return rep
}

// warmCache primes the tracker with the latest recorded state of every domain.
func warmCache(ctx context.Context, cs store.ChangeStore, trackerService *service.TrackerService) error {
	domains, err := cs.Domains(ctx)
	if err != nil {
		return err
	}
	for _, domain := range domains {
		head, err := cs.LatestState(ctx, domain)
		if err != nil {
			return fmt.Errorf("load latest state of %s: %w", domain, err)
		}
		trackerService.WarmCache(domain, head)
	}
	log.Debug().Int("domains", len(domains)).Msg("Warmed state cache")
	return nil
}

// replayHistory sends the changes recorded by earlier runs to the UI.
func replayHistory(cs store.ChangeStore, prog *vm.Program, renderer *report.Renderer, program *tea.Program) error {
	reports, err := collectHistory(cs, prog, nil)
	if err != nil {
		return err
	}
	for _, rep := range reports {
		rendered, err := renderer.Render(rep)
		if err != nil {
			return err
		}
		program.Send(ui.NewCycleMsg(0, rep.Time, len(rep.Changes), nil, rendered))
	}
	return nil
}

func validateArgsAndFlags(_ *cobra.Command, args []string) error {
	if _, err := report.ParseFormat(viper.GetString("format")); err != nil {
		return err
	}
	if viper.GetDuration("interval") <= 0 {
		return fmt.Errorf("--interval must be positive")
	}
	if viper.GetInt("parallelism") < 1 {
		return fmt.Errorf("--parallelism must be at least 1")
	}
	for _, a := range args {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("invalid empty domain argument")
		}
	}
	return nil
}

func mustBind(flagName string, err error) {
	if err != nil {
		log.Fatal().Err(err).Msgf("Failed to bind flag %s", flagName)
	}
}
