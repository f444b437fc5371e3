package main

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// GlobalFlags holds the flags that are not configuration keys.
type GlobalFlags struct {
	ConfigPath string
}

// flagKeys maps tail flags to configuration keys. Flags only override a key
// when set on the command line.
var flagKeys = map[string]string{
	"profile":       "aws.profile",
	"region":        "aws.region",
	"page-size":     "aws.page_size",
	"interval":      "tail.interval",
	"lookback":      "tail.lookback",
	"query-timeout": "tail.query_timeout",
	"max-failures":  "tail.max_failures",
	"simple":        "tail.simple",
	"tz":            "tail.location",
	"no-banner":     "tail.no_banner",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"log-file":      "log.file",
	"log-color":     "log.color",
	"archive":       "archive.dsn",
	"listen":        "server.listen",
}

func addTailFlags(fs *pflag.FlagSet, flags *GlobalFlags) {
	fs.StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")

	fs.String("profile", "", "AWS shared config profile")
	fs.String("region", "", "AWS region")
	fs.Int("page-size", 50, "LookupEvents page size (1-50)")

	fs.Duration("interval", 0, "time between polls (default 5s)")
	fs.Duration("lookback", 0, "start this far in the past")
	fs.Duration("query-timeout", 0, "timeout of one poll (default 30s)")
	fs.Int("max-failures", 0, "give up after this many consecutive failed polls, 0 retries forever")
	fs.Bool("simple", false, "coarse ages and short annotations")
	fs.String("tz", "", "time zone of the clock column (default Local)")
	fs.Bool("no-banner", false, "do not print the startup banner")

	fs.String("log-level", "", "diagnostic log level: debug, info, warn, error")
	fs.String("log-format", "", "diagnostic log format: text, json")
	fs.String("log-file", "", "write diagnostic logs to a rotating file")
	fs.Bool("log-color", true, "colorize diagnostic logs on stderr")

	fs.StringSlice("archive", nil, "archive DSN (sqlite, postgres, clickhouse, opensearch); repeatable")
	fs.String("listen", "", "serve /healthz, /status and /metrics on this address")
}

// bindFlags attaches every tail flag present in fs to its configuration key.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}
