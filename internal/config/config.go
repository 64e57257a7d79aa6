// Package config loads process configuration from a YAML file, the
// environment and command-line flags, and validates it against an
// embedded CUE definition.
//
// Precedence, highest first: flags that were set, MIRROR_* environment
// variables, the config file, defaults.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

//go:embed schema.cue
var schemaCUE string

const (
	// FileName is the config file searched for, without extension.
	FileName = ".mirror"

	// EnvPrefix prefixes every environment override, e.g. MIRROR_TOKEN.
	EnvPrefix = "MIRROR"

	// StateDir is the hidden directory under the root for local state.
	StateDir = ".mirror"
)

// Config keys.
const (
	KeyRoot     = "root"
	KeyEndpoint = "endpoint"
	KeyToken    = "token"
	KeyJournal  = "journal"
	KeyLogFile  = "log_file"
	KeyLogLevel = "log_level"
	KeyTimeout  = "timeout"
)

// Config is the resolved process configuration.
type Config struct {
	Root     string        `mapstructure:"root" json:"root"`
	Endpoint string        `mapstructure:"endpoint" json:"endpoint"`
	Token    string        `mapstructure:"token" json:"token"`
	Journal  string        `mapstructure:"journal" json:"journal"`
	LogFile  string        `mapstructure:"log_file" json:"log_file"`
	LogLevel string        `mapstructure:"log_level" json:"log_level"`
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout"`

	// Source is the config file that was read, "" when none was found.
	Source string `mapstructure:"-" json:"-"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Root:     "mirror",
		LogLevel: "info",
		Timeout:  30 * time.Second,
	}
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// File is an explicit config file. It must exist when set.
	File string

	// SearchPaths are the directories searched for FileName when File is
	// empty, in order.
	SearchPaths []string

	// Flags are bound to their config keys by name, with "-" for "_"
	// (log-file binds log_file). Only flags that were set override.
	Flags *pflag.FlagSet
}

// Load resolves the configuration and validates it.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault(KeyRoot, def.Root)
	v.SetDefault(KeyEndpoint, def.Endpoint)
	v.SetDefault(KeyToken, def.Token)
	v.SetDefault(KeyJournal, def.Journal)
	v.SetDefault(KeyLogFile, def.LogFile)
	v.SetDefault(KeyLogLevel, def.LogLevel)
	v.SetDefault(KeyTimeout, def.Timeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for _, key := range []string{KeyRoot, KeyEndpoint, KeyToken, KeyJournal, KeyLogFile, KeyLogLevel, KeyTimeout} {
			if f := opts.Flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	source, err := readFile(v, opts)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Source = source
	if cfg.Journal == "" {
		cfg.Journal = filepath.Join(cfg.Root, StateDir, "journal.db")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(v *viper.Viper, opts LoadOptions) (string, error) {
	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("failed to read config %s: %w", opts.File, err)
		}
		return v.ConfigFileUsed(), nil
	}

	if len(opts.SearchPaths) == 0 {
		return "", nil
	}
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	for _, dir := range opts.SearchPaths {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// ValidationError is one violation of the config definition.
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// InvalidError reports every violation found in a config.
type InvalidError struct {
	Errors []ValidationError
}

func (e *InvalidError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// IsInvalid returns true if err reports a config that failed validation.
func IsInvalid(err error) bool {
	var ie *InvalidError
	return errors.As(err, &ie)
}

// Validate checks the configuration against the #Config definition.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	value := def.Unify(ctx.Encode(c))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError flattens CUE errors into one ValidationError per path.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &InvalidError{Errors: []ValidationError{{Message: err.Error()}}}
	}

	invalid := &InvalidError{}
	seen := make(map[string]bool)
	for _, e := range errs {
		path := strings.Join(e.Path(), ".")
		if seen[path] {
			continue
		}
		seen[path] = true
		format, args := e.Msg()
		invalid.Errors = append(invalid.Errors, ValidationError{
			Path:    path,
			Message: fmt.Sprintf(format, args...),
		})
	}
	return invalid
}
