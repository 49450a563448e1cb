package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// LoadOptions reads configuration into Opts: defaults first, then an optional
// YAML file, then OPENSHELF_* environment overrides. A missing config file is
// not an error; a malformed one is.
func LoadOptions(configFile string) (*Options, error) {
	opts := GetDefaultOptions()

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("openshelf")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/openshelf")
	}

	v.SetEnvPrefix("openshelf")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"log_file", "log_level", "log_file_max_size", "log_file_max_backups",
		"log_file_max_age", "log_compress", "dsn_uri", "port", "host", "data",
		"loan_period_days", "max_active_loans", "daily_fine_rate", "worker_pool_size",
	} {
		// BindEnv before ReadInConfig so env vars win without a config file present.
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrapf(err, "failed to bind env for %q", key)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && configFile != "" {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	if err := v.Unmarshal(opts); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal options")
	}

	Opts = opts
	return opts, nil
}
