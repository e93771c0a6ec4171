// Command wasmdump inspects, re-encodes and runs WebAssembly core modules.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-codec/engine"
	"github.com/wippyai/wasm-codec/wasm"
)

const (
	// AppName is the application name.
	AppName = "wasmdump"
	// EnvPrefix prefixes environment overrides, e.g. WASMDUMP_VALIDATE.
	EnvPrefix = "WASMDUMP"
)

// settings is the resolved configuration after flags, env and file.
type settings struct {
	Verbose          bool   `mapstructure:"verbose"`
	RequireOrder     bool   `mapstructure:"require_order"`
	Validate         bool   `mapstructure:"validate"`
	MemoryLimitPages uint32 `mapstructure:"memory_limit_pages"`
}

type app struct {
	v       *viper.Viper
	log     *zap.Logger
	cfgFile string
	cfg     settings
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), log: zap.NewNop()}

	root := &cobra.Command{
		Use:   AppName,
		Short: "Inspect and run WebAssembly core modules",
		Long: TitleStyle.Render(AppName) + SubtitleStyle.Render(" - WebAssembly binary codec toolbox") + `

wasmdump decodes a core module into its section model, reports sizes,
disassembles function bodies, re-encodes modules to check byte stability,
and calls exported functions through wazero.

Configuration is read from wasmdump.toml in the working directory or
$XDG_CONFIG_HOME/wasmdump, and from WASMDUMP_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./wasmdump.toml)")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.Bool("require-order", false, "reject sections out of canonical order")
	flags.Bool("validate", false, "run cross-section validation after decoding")
	flags.Uint32("memory-limit-pages", 0, "memory limit for run and browse, in 64 KiB pages")

	for key, flag := range map[string]string{
		"verbose":            "verbose",
		"require_order":      "require-order",
		"validate":           "validate",
		"memory_limit_pages": "memory-limit-pages",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newInfoCmd(a),
		newSizesCmd(a),
		newPrintCmd(a),
		newRoundtripCmd(a),
		newCheckCmd(a),
		newRunCmd(a),
		newRawCmd(a),
		newBrowseCmd(a),
	)
	return root
}

// init resolves configuration and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	if err := loadConfig(a.v, a.cfgFile); err != nil {
		return err
	}
	if err := a.v.Unmarshal(&a.cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	if a.cfg.Verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		a.log = log.Named(AppName)
	}
	engine.SetLogger(a.log.Named("engine"))
	a.log.Debug("configuration loaded",
		zap.String("file", a.v.ConfigFileUsed()),
		zap.String("command", cmd.Name()),
		zap.Bool("require_order", a.cfg.RequireOrder),
		zap.Bool("validate", a.cfg.Validate))
	return nil
}

// loadConfig reads wasmdump.toml and WASMDUMP_* variables into v. A missing
// default config file is not an error; a missing explicit one is.
func loadConfig(v *viper.Viper, path string) error {
	v.SetDefault("verbose", false)
	v.SetDefault("require_order", false)
	v.SetDefault("validate", false)
	v.SetDefault("memory_limit_pages", 0)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// configDir returns $XDG_CONFIG_HOME/wasmdump, defaulting to ~/.config.
func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, AppName)
}

func (a *app) decodeConfig() *wasm.DecodeConfig {
	return &wasm.DecodeConfig{
		Logger:       a.log.Named("decode"),
		RequireOrder: a.cfg.RequireOrder,
		Validate:     a.cfg.Validate,
	}
}

// load reads and decodes a module file.
func (a *app) load(path string) ([]byte, *wasm.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read file: %w", err)
	}
	m, err := wasm.DecodeModuleWithConfig(data, a.decodeConfig())
	if err != nil {
		return data, nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return data, m, nil
}

func (a *app) engineConfig() *engine.Config {
	return &engine.Config{MemoryLimitPages: a.cfg.MemoryLimitPages}
}
