package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// AppName is used for the config file name and search directories
	AppName = "autopilot"

	// EnvPrefix is the prefix of environment variables
	EnvPrefix = "AUTOPILOT"
)

// Settings holds the process configuration
type Settings struct {
	Debug     bool          `mapstructure:"debug"`
	LogFormat string        `mapstructure:"log_format"`
	LogFile   string        `mapstructure:"log_file"`
	URL       string        `mapstructure:"url"`
	Token     string        `mapstructure:"token"`
	// Timeout bounds a whole run; zero leaves the run unbounded
	Timeout time.Duration `mapstructure:"timeout"`
	// RequestTimeout bounds each web service request
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// NewViper returns a viper instance with defaults and environment binding.
// Flags are bound by the caller before LoadSettings.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// the token is commonly exported for the whole shell
	_ = v.BindEnv("token", EnvPrefix+"_TOKEN", "MOODLE_TOKEN")
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "human")
	v.SetDefault("log_file", "")
	v.SetDefault("url", "")
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("request_timeout", 60*time.Second)
}

func addSearchPaths(v *viper.Viper) {
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, "."+AppName))
	}
	v.AddConfigPath("/etc/" + AppName)
}

// LoadSettings reads the optional config file and resolves the settings.
// A missing config file is not an error unless it was named explicitly.
func LoadSettings(v *viper.Viper, cfgFile string) (*Settings, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		addSearchPaths(v)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if s.LogFormat != "json" && s.LogFormat != "human" {
		return nil, fmt.Errorf("invalid log_format %q, expected json or human", s.LogFormat)
	}
	return &s, nil
}

// ConfigFileUsed reports the config file that was read, if any
func ConfigFileUsed(v *viper.Viper) string {
	return v.ConfigFileUsed()
}
