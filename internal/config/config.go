package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dl-alexandre/dirsync/internal/backend/ftp"
	"github.com/dl-alexandre/dirsync/internal/backend/local"
	"github.com/dl-alexandre/dirsync/internal/sync/exclude"
	"github.com/dl-alexandre/dirsync/internal/types"
	"github.com/dl-alexandre/dirsync/internal/utils"
)

const (
	// ConfigFileName is the base name of the config file, without extension
	ConfigFileName = "config"
	// ConfigFileType is the config file format
	ConfigFileType = "json"
	// ConfigDirName is the directory below the user config dir
	ConfigDirName = "dirsync"
)

// Config holds the settings of one run
type Config struct {
	// Left and Right are the two directories; Left is authoritative when mirroring
	Left  string `mapstructure:"left" json:"left"`
	Right string `mapstructure:"right" json:"right"`

	Mirroring        bool `mapstructure:"mirroring" json:"mirroring"`
	PreserveDirRight bool `mapstructure:"preserve_dirright" json:"preserveDirRight"`
	DryRun           bool `mapstructure:"dry_run" json:"dryRun"`

	// Exclude holds patterns removed from both snapshots
	Exclude []string `mapstructure:"exclude" json:"exclude"`

	Debug   bool   `mapstructure:"debug" json:"debug"`
	LogFile string `mapstructure:"log" json:"log"`
	NoLog   bool   `mapstructure:"no_log" json:"noLog"`

	Output types.OutputFormat `mapstructure:"output" json:"output"`
	Quiet  bool               `mapstructure:"quiet" json:"quiet"`

	FTPTimeout    time.Duration `mapstructure:"ftp_timeout" json:"ftpTimeout"`
	FTPTreeCache  bool          `mapstructure:"ftp_tree_cache" json:"ftpTreeCache"`
	StatCacheSize int           `mapstructure:"stat_cache_size" json:"statCacheSize"`

	// Keyring enables password lookup for FTP URLs that omit one
	Keyring bool `mapstructure:"keyring" json:"keyring"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LogFile:       utils.DefaultLogFile,
		Output:        types.OutputFormatTable,
		FTPTimeout:    utils.DefaultFTPTimeout,
		StatCacheSize: utils.DefaultStatCacheSize,
	}
}

// flagKeys maps config keys to command line flag names
var flagKeys = map[string]string{
	"mirroring":         "mirroring",
	"preserve_dirright": "preserve-dirright",
	"dry_run":           "dry-run",
	"exclude":           "exclude",
	"debug":             "debug",
	"log":               "log",
	"no_log":            "no-log",
	"output":            "output",
	"quiet":             "quiet",
	"ftp_timeout":       "ftp-timeout",
	"ftp_tree_cache":    "ftp-tree-cache",
	"stat_cache_size":   "stat-cache-size",
	"keyring":           "keyring",
}

// Load resolves configuration with precedence: flags > env vars > config file > defaults.
// configFile names an explicit file; when empty the default location is
// searched and a missing file is not an error.
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("left", "")
	v.SetDefault("right", "")
	v.SetDefault("mirroring", def.Mirroring)
	v.SetDefault("preserve_dirright", def.PreserveDirRight)
	v.SetDefault("dry_run", def.DryRun)
	v.SetDefault("exclude", []string{})
	v.SetDefault("debug", def.Debug)
	v.SetDefault("log", def.LogFile)
	v.SetDefault("no_log", def.NoLog)
	v.SetDefault("output", string(def.Output))
	v.SetDefault("quiet", def.Quiet)
	v.SetDefault("ftp_timeout", def.FTPTimeout)
	v.SetDefault("ftp_tree_cache", def.FTPTreeCache)
	v.SetDefault("stat_cache_size", def.StatCacheSize)
	v.SetDefault("keyring", def.Keyring)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType(ConfigFileType)
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !stderrors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	v.SetEnvPrefix(utils.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Exclude = normalizePatterns(cfg.Exclude)
	return &cfg, nil
}

// normalizePatterns splits comma-joined entries so env values and repeated
// flags yield the same list.
func normalizePatterns(in []string) []string {
	var out []string
	for _, item := range in {
		out = append(out, exclude.ParseList(item)...)
	}
	return out
}

// Validate checks that the configuration can drive a run
func (c *Config) Validate() error {
	if c.Left == "" || c.Right == "" {
		return invalidArg("both DIRLEFT and DIRRIGHT are required")
	}
	for _, p := range []string{c.Left, c.Right} {
		if err := validatePath(p); err != nil {
			return err
		}
	}
	if c.Output != types.OutputFormatJSON && c.Output != types.OutputFormatTable {
		return invalidArg(fmt.Sprintf("invalid output format: %s (must be 'json' or 'table')", c.Output))
	}
	if c.FTPTimeout <= 0 {
		return invalidArg(fmt.Sprintf("ftp timeout must be positive, got: %s", c.FTPTimeout))
	}
	if c.StatCacheSize <= 0 {
		return invalidArg(fmt.Sprintf("stat cache size must be positive, got: %d", c.StatCacheSize))
	}
	return nil
}

// Warnings lists settings that are accepted but have no effect
func (c *Config) Warnings() []types.CLIWarning {
	var out []types.CLIWarning
	if c.PreserveDirRight && !c.Mirroring {
		out = append(out, types.CLIWarning{
			Code:     "PRESERVE_WITHOUT_MIRROR",
			Message:  "--preserve-dirright only applies with --mirroring",
			Severity: "warning",
		})
	}
	switch {
	case c.NoLog && c.Debug:
		out = append(out, types.CLIWarning{
			Code:     "NO_LOG_IGNORED",
			Message:  "--no-log is ignored because --debug is set",
			Severity: "warning",
		})
	case c.NoLog && c.LogFile != utils.DefaultLogFile:
		out = append(out, types.CLIWarning{
			Code:     "LOG_DISABLED",
			Message:  "--log is ignored because --no-log is set",
			Severity: "warning",
		})
	}
	return out
}

// LogFilePath returns the log file to write, or "" when file logging is
// off. --debug always keeps the file log.
func (c *Config) LogFilePath() string {
	if c.NoLog && !c.Debug {
		return ""
	}
	return c.LogFile
}

// ExcludeMatcher compiles the exclusion patterns
func (c *Config) ExcludeMatcher() *exclude.Matcher {
	return exclude.New(c.Exclude)
}

// validatePath rejects relative local paths. URLs are checked by the
// router; only the ftp scheme is accepted there.
func validatePath(p string) error {
	if ftp.URLPattern.MatchString(p) || strings.Contains(p, "://") {
		return nil
	}
	if local.WindowsPattern.MatchString(p) || local.UnixPattern.MatchString(p) {
		return nil
	}
	cliErr := utils.NewCLIError(utils.ErrCodeInvalidPath,
		fmt.Sprintf("local directory must be absolute: %s", p)).
		WithSuggestedAction("use a drive-letter path (C:\\data), a /rooted path or an ftp:// URL").
		WithContext("path", p).
		Build()
	return utils.NewAppError(cliErr)
}

func invalidArg(msg string) error {
	return utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument, msg).Build())
}

// GetConfigPath returns the path to the default config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName+"."+ConfigFileType), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	if dir := os.Getenv(utils.EnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", ConfigDirName), nil
}
