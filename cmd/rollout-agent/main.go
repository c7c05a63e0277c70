package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rolloutd/agent/pkg/agentconfig"
	"github.com/rolloutd/agent/pkg/driver"
	"github.com/rolloutd/agent/pkg/httpclient"
	"github.com/rolloutd/agent/pkg/log"
	"github.com/rolloutd/agent/pkg/steps"
	"github.com/rolloutd/agent/pkg/stepdoc"
	"github.com/rolloutd/agent/pkg/stepimpl"
	"github.com/rolloutd/agent/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// defaultConfigDir is the directory searched for the local
// configuration file, TLS material, and any local class/device
// override documents when --configdir is not given (spec §6).
const defaultConfigDir = "/etc/rollout-agent"

var flags struct {
	verbose      int
	quiet        bool
	safeMode     bool
	validate     bool
	url          string
	skipSteps    []string
	only         []string
	force        []string
	hostname     string
	configDir    string
	configFile   string
	noStepLabels bool
	stepHelp     []string
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rollout-agent [comment words...]",
	Short: "Pulls and runs a host's configuration steps from a rollout repository",
	Long: `rollout-agent fetches an ordered catalog of configuration steps from
an HTTP(S) repository, evaluates this host's configuration against a
multiple-inheritance class/device model, and runs each step in
priority order through a small primitive library (config lookup,
command execution, HTTP file fetch, logging).`,
	Version:      fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.CountVarP(&flags.verbose, "verbose", "v", "increase verbosity (repeatable)")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "verbosity 0, errors only")
	f.BoolVarP(&flags.safeMode, "safe_mode", "s", false, "skip command() side effects; still log what would run")
	f.BoolVar(&flags.validate, "validate", false, "run only validate_config blocks; exit code = error count")
	f.StringVarP(&flags.url, "url", "u", "", "override base_url")
	f.StringArrayVarP(&flags.skipSteps, "skip_step", "k", nil, "skip step matching ^\\d*-?S$ (repeatable)")
	f.StringArrayVarP(&flags.only, "only", "o", nil, "only run matching steps (repeatable)")
	f.StringArrayVarP(&flags.force, "force", "f", nil, "allow a dangerous step to run (repeatable)")
	f.StringVarP(&flags.hostname, "hostname", "h", "", "treat H as the host root device")
	f.StringVar(&flags.configDir, "configdir", defaultConfigDir, "directory for local config and TLS material")
	f.StringVar(&flags.configFile, "configfile", "", "config file within configdir, or absolute")
	f.BoolVar(&flags.noStepLabels, "no_step_labels", false, "suppress per-step header lines")
	f.StringArrayVarP(&flags.stepHelp, "step_help", "H", nil, "print documentation for step(s) matching S (repeatable)")
	f.BoolP("help", "?", false, "usage")

	rootCmd.SetVersionTemplate("rollout-agent version {{.Version}}\n")
}

func run(cmd *cobra.Command, args []string) error {
	if flags.quiet {
		flags.verbose = 0
	}
	if flags.validate {
		flags.safeMode = true
		flags.noStepLabels = true
	}

	level := log.InfoLevel
	switch {
	case flags.quiet:
		level = log.ErrorLevel
	case flags.verbose >= 3:
		level = log.DebugLevel
	}
	log.Init(log.Config{Level: level})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &types.AgentOptions{
		Verbosity:    flags.verbose,
		SafeMode:     flags.safeMode,
		Validate:     flags.validate,
		BaseURL:      flags.url,
		SkipSteps:    flags.skipSteps,
		Only:         flags.only,
		Force:        flags.force,
		Hostname:     flags.hostname,
		ConfigDir:    flags.configDir,
		ConfigFile:   flags.configFile,
		NoStepLabels: flags.noStepLabels,
		StepHelp:     flags.stepHelp,
		Comment:      strings.Join(args, " "),
	}

	if len(opts.StepHelp) > 0 {
		return runStepHelp(ctx, opts)
	}

	registry := stepimpl.NewRegistry()
	d := driver.New(opts, registry)
	d.MetricsPath = textfileCollectorPath(opts.ConfigDir)

	result, err := d.Run(ctx)
	if err != nil {
		return err
	}

	exitCode := result.ErrorCount
	if opts.Validate {
		exitCode = result.ValidationErrors
	}
	log.Logger.Info().
		Str("run_id", result.RunID).
		Str("host", result.Host).
		Int("steps_run", result.StepsRun).
		Int("error_count", result.ErrorCount).
		Int("validation_errors", result.ValidationErrors).
		Msg("run finished")

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

// textfileCollectorPath is where the run's Prometheus metrics are
// dropped for node_exporter's textfile collector to pick up.
func textfileCollectorPath(configDir string) string {
	return filepath.Join(configDir, "rollout-agent.prom")
}

// runStepHelp handles --step_help: it fetches the remote step index
// and, for each requested pattern, the matching step's source, then
// renders its embedded documentation. It never runs the driver state
// machine at all.
func runStepHelp(ctx context.Context, opts *types.AgentOptions) error {
	configFilePath := opts.ConfigFile
	if configFilePath == "" {
		configFilePath = driver.DefaultConfigFile
	}
	if !filepath.IsAbs(configFilePath) {
		configFilePath = filepath.Join(opts.ConfigDir, configFilePath)
	}

	cfg, err := agentconfig.Load(configFilePath)
	if err != nil {
		return err
	}
	if opts.BaseURL != "" {
		cfg.Set("base_url", opts.BaseURL)
	}
	baseURL := strings.TrimRight(cfg.Get("base_url"), "/")
	if baseURL == "" {
		return fmt.Errorf("base_url is not configured; pass --url or set it in the agent configuration file")
	}

	hostname := opts.Hostname
	if hostname == "" {
		hostname = cfg.Get("hostname")
	}
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	var client *httpclient.Client
	if strings.HasPrefix(baseURL, "https://") {
		client, err = httpclient.New(cfg, opts.ConfigDir, hostname)
		if err != nil {
			return err
		}
	} else {
		client = httpclient.NewPlain()
	}

	entries, err := client.Index(ctx, baseURL+"/steps/")
	if err != nil {
		return err
	}

	loader := steps.NewLoader(client, baseURL, steps.NewModuleRegistry())

	for _, pattern := range opts.StepHelp {
		matcher, err := regexp.Compile(`(\d+-)?` + regexp.QuoteMeta(pattern) + `$`)
		if err != nil {
			return fmt.Errorf("invalid --step_help pattern %q: %w", pattern, err)
		}

		matched := false
		for _, e := range entries {
			if e.Type == "directory" || !matcher.MatchString(e.Filename) {
				continue
			}
			matched = true
			source, err := loader.Source(ctx, e.Filename)
			if err != nil {
				return err
			}
			fmt.Print(stepdoc.Render(e.Filename, source))
		}
		if !matched {
			fmt.Fprintf(os.Stderr, "no step matches %q\n", pattern)
		}
	}
	return nil
}
