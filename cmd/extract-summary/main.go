// Command extract-summary turns a TestNG results file into a JSON summary on stdout.
package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/drone/drone-testng-notify/internal/logging"
	"github.com/drone/drone-testng-notify/testng"
)

// Options holds the extract-summary command line flags.
type Options struct {
	Detail   string
	LogLevel string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(arguments []string, stdout, stderr io.Writer) int {
	env, err := logging.LoadArgs()
	if err != nil {
		_ = logging.Setup(stderr, logging.DefaultLevel)
		log.WithError(err).Error("error reading environment")
		return 1
	}

	opt := &Options{
		Detail:   string(testng.DetailSummary),
		LogLevel: env.Level,
	}

	cmd := &cobra.Command{
		Use:           "extract-summary <path-to-testng-results.xml>",
		Short:         "Extract a JSON test summary from a TestNG results file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Setup(stderr, opt.LogLevel); err != nil {
				log.WithError(err).Warn("falling back to info logging")
			}
			return opt.Run(args[0], stdout)
		},
	}
	if arguments == nil {
		arguments = []string{}
	}
	cmd.SetArgs(arguments)
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVar(&opt.Detail, "detail", opt.Detail, "Per-test detail to include: summary, cases or full")
	flags.StringVar(&opt.LogLevel, "log-level", opt.LogLevel, "Log level (trace,debug,info,warn,error)")

	if err := cmd.Execute(); err != nil {
		_ = logging.Setup(stderr, opt.LogLevel)
		switch {
		case errors.Is(err, testng.ErrFileNotFound):
			log.WithError(err).Error("Error: File not found")
		case errors.Is(err, testng.ErrParse):
			log.WithError(err).Error("Error parsing XML")
		default:
			log.WithError(err).Errorf("Usage: %s", cmd.UseLine())
		}
		return 1
	}
	return 0
}

// Run extracts the summary for path and writes it to out as indented JSON.
func (o *Options) Run(path string, out io.Writer) error {
	detail, err := testng.ParseDetail(o.Detail)
	if err != nil {
		return err
	}

	summary, err := testng.Extract(path, testng.Options{Detail: detail})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return errors.Wrap(enc.Encode(summary), "failed to write summary")
}
