// Package logging configures the shared logrus logger for the command line tools.
package logging

import (
	"io"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultLevel is used when neither the flag nor the environment set a level.
const DefaultLevel = "info"

// Args represents settings shared by every command, read from the environment.
type Args struct {
	Level string `envconfig:"PLUGIN_LOG_LEVEL"`
}

// LoadArgs loads an optional .env file and reads Args from the environment.
func LoadArgs() (Args, error) {
	_ = godotenv.Load()

	var args Args
	if err := envconfig.Process("", &args); err != nil {
		return Args{}, errors.Wrap(err, "failed to read environment")
	}
	if args.Level == "" {
		args.Level = DefaultLevel
	}
	return args, nil
}

// Setup points the standard logger at out and applies level.
func Setup(out io.Writer, level string) error {
	logrus.SetOutput(out)

	formatter := new(logrus.TextFormatter)
	formatter.TimestampFormat = "2006-01-02T15:04:05.999Z07:00"
	formatter.FullTimestamp = true
	formatter.DisableColors = true
	logrus.SetFormatter(formatter)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.SetLevel(logrus.InfoLevel)
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	logrus.SetLevel(lvl)
	return nil
}
