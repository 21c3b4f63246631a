// Package cli implements kerasctl, a one-shot client that drives the bridge
// in-process: install the Python dependency, import modules, convert values
// and build Keras objects.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"kerasbridge/internal/config"
	"kerasbridge/internal/manager"
)

// Options are the global flags. Fields left at their zero value fall back
// to the config file, then to defaults.
type Options struct {
	ConfigPath string
	Out        io.Writer
	Err        io.Writer
}

// Test hooks.
var (
	fnEnsure = func(ctx context.Context, cfg config.Config, log zerolog.Logger) (string, string, error) {
		inst := NewInstaller(cfg, log)
		py, version, err := inst.SetupPython(ctx)
		if err != nil {
			return "", "", err
		}
		if cfg.SkipInstall {
			return py, version, nil
		}
		return py, version, inst.EnsureRuntimeReady(ctx, cfg.Dependency, cfg.MinVersion)
	}
	fnNewManager = func(cfg config.Config, log zerolog.Logger) *manager.Manager {
		b := NewBridge(cfg, log, NewLoggingPublisher(log))
		return manager.New(manager.ManagerConfig{
			Runtime:    b,
			Dependency: cfg.Dependency,
			MinVersion: cfg.MinVersion,
			MaxObjects: cfg.MaxObjects,
			Logger:     log,
		})
	}
)

// Run executes kerasctl with args and returns instead of exiting.
func Run(ctx context.Context, args []string, opts Options) error {
	root := buildRootCmdWith(&opts)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// BuildRootCmd returns the command tree for main.
func BuildRootCmd(opts Options) *cobra.Command { return buildRootCmdWith(&opts) }

type flagValues struct {
	python, venv, dependency, minVersion, indexURL, runtime, logLevel, logFormat, startTimeout string
	noInstall, skipInstall                                                                    bool
}

func buildRootCmdWith(opts *Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	var fv flagValues
	var cfg config.Config
	var log zerolog.Logger

	root := &cobra.Command{
		Use:           "kerasctl",
		Short:         "Drive Keras through an external Python interpreter",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "Config file (.yaml, .json or .toml)")
	pf.StringVar(&fv.python, "python", "", "Base Python interpreter (default python3)")
	pf.StringVar(&fv.venv, "venv", "", "Virtualenv directory, created on first use")
	pf.StringVar(&fv.dependency, "dependency", "", "pip dependency to ensure (default tensorflow)")
	pf.StringVar(&fv.minVersion, "min-version", "", "Minimum dependency version (default 2.0 for tensorflow)")
	pf.StringVar(&fv.indexURL, "index-url", "", "pip --index-url")
	pf.StringVar(&fv.runtime, "runtime", "", "Runtime: subprocess|memory")
	pf.StringVar(&fv.startTimeout, "start-timeout", "", "Interpreter start timeout, e.g. 60s")
	pf.StringVar(&fv.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&fv.logFormat, "log-format", "", "Log format: console|json")
	pf.BoolVar(&fv.noInstall, "no-install", false, "Fail instead of running pip install")
	pf.BoolVar(&fv.skipInstall, "skip-install", false, "Skip the dependency check entirely")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = resolveConfig(cmd, opts.ConfigPath, fv)
		if err != nil {
			return err
		}
		log = NewLogger(opts.Err, cfg.LogLevel, cfg.LogFormat)
		return nil
	}

	installCmd := &cobra.Command{
		Use:     "install",
		Short:   "Set up Python and ensure the dependency is installed",
		Example: "  kerasctl install --venv ~/.venvs/keras",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			py, version, err := fnEnsure(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "python %s (%s)\n", py, version)
			if !cfg.SkipInstall {
				fmt.Fprintf(cmd.OutOrStdout(), "%s ok\n", dependencySpec(cfg))
			}
			return nil
		},
	}

	importCmd := &cobra.Command{
		Use:     "import <module>",
		Short:   "Import a module by dotted path",
		Example: "  kerasctl import tensorflow.keras.layers",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := fnNewManager(cfg, log)
			defer m.Close()
			resp, err := m.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	convertCmd := &cobra.Command{
		Use:     "convert <json>",
		Short:   "Convert a JSON value and print its handle and repr",
		Example: "  kerasctl convert '{\"tuple\":[224,224,3]}'\n  kerasctl convert '[1, 2.5, \"relu\", null]'",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := fnNewManager(cfg, log)
			defer m.Close()
			resp, err := m.Convert(cmd.Context(), json.RawMessage(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	var params []string
	layerCmd := &cobra.Command{
		Use:     "layer <kind>",
		Short:   "Build a registered Keras kind",
		Example: "  kerasctl layer GaussianNoise --param stddev=0.1\n  kerasctl layer MobileNetV2 --param include_top=false --param 'input_shape={\"shape\":[96,96,3]}'",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			m := fnNewManager(cfg, log)
			defer m.Close()
			info, err := m.BuildLayer(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
	layerCmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Constructor parameter as name=<json>, repeatable")

	kindsCmd := &cobra.Command{
		Use:   "kinds",
		Short: "List buildable Keras kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := fnNewManager(cfg, log)
			for _, k := range m.Kinds() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}

	root.AddCommand(installCmd, importCmd, convertCmd, layerCmd, kindsCmd)

	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(cmd.OutOrStdout(), true) }})
	completionCmd.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error {
		return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
	}})
	root.AddCommand(completionCmd)

	return root
}

// resolveConfig layers the config file, then explicitly set flags, then defaults.
func resolveConfig(cmd *cobra.Command, path string, fv flagValues) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		c, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("python", &cfg.Python, fv.python)
	set("venv", &cfg.VenvDir, fv.venv)
	set("dependency", &cfg.Dependency, fv.dependency)
	set("min-version", &cfg.MinVersion, fv.minVersion)
	set("index-url", &cfg.IndexURL, fv.indexURL)
	set("runtime", &cfg.Runtime, fv.runtime)
	set("start-timeout", &cfg.StartTimeout, fv.startTimeout)
	set("log-level", &cfg.LogLevel, fv.logLevel)
	set("log-format", &cfg.LogFormat, fv.logFormat)
	if flags.Changed("no-install") {
		auto := !fv.noInstall
		cfg.AutoInstall = &auto
	}
	if flags.Changed("skip-install") {
		cfg.SkipInstall = fv.skipInstall
	}
	return cfg.WithDefaults()
}

// parseParams turns name=<json> pairs into raw parameters. A value that is
// not valid JSON is taken as a string, so --param weights=imagenet works.
func parseParams(pairs []string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(pairs))
	for _, p := range pairs {
		name, val, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q: want name=<json>", p)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("duplicate --param %q", name)
		}
		raw := json.RawMessage(val)
		if !json.Valid(raw) {
			quoted, _ := json.Marshal(val)
			raw = quoted
		}
		out[name] = raw
	}
	return out, nil
}

func dependencySpec(cfg config.Config) string {
	if cfg.MinVersion == "" {
		return cfg.Dependency
	}
	return cfg.Dependency + ">=" + cfg.MinVersion
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
