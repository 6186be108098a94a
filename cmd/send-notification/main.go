// Command send-notification sends a test summary by e-mail and/or Google Chat.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/drone/drone-testng-notify/internal/logging"
	"github.com/drone/drone-testng-notify/notify"
)

// Options holds the send-notification flags and channel overrides.
type Options struct {
	LogLevel string

	// Channels replaces the default senders; tests only.
	Channels notify.Channels
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stderr, &Options{}))
}

func run(ctx context.Context, arguments []string, stderr io.Writer, opt *Options) int {
	env, err := logging.LoadArgs()
	if err != nil {
		_ = logging.Setup(stderr, logging.DefaultLevel)
		log.WithError(err).Error("error reading environment")
		return 1
	}
	if opt.LogLevel == "" {
		opt.LogLevel = env.Level
	}

	cmd := &cobra.Command{
		Use:           "send-notification <summary-json> <config-json>",
		Short:         "Send test summary notifications to e-mail and Google Chat",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Setup(stderr, opt.LogLevel); err != nil {
				log.WithError(err).Warn("falling back to info logging")
			}
			return opt.Run(cmd.Context(), args[0], args[1])
		},
	}
	if arguments == nil {
		arguments = []string{}
	}
	cmd.SetArgs(arguments)
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)
	cmd.Flags().StringVar(&opt.LogLevel, "log-level", opt.LogLevel, "Log level (trace,debug,info,warn,error)")

	if err := cmd.ExecuteContext(ctx); err != nil {
		_ = logging.Setup(stderr, opt.LogLevel)
		if errors.Is(err, notify.ErrLoad) {
			log.WithError(err).Error("Failed to load notification input")
		} else {
			log.WithError(err).Errorf("Usage: %s", cmd.UseLine())
		}
		return 1
	}
	return 0
}

// Run loads the summary and configuration and dispatches the enabled channels.
// Channel failures are logged by Dispatch and do not fail the run.
func (o *Options) Run(ctx context.Context, summaryPath, configPath string) error {
	log.Infof("📥 Loading test summary from: %s", summaryPath)
	summary, err := notify.LoadSummary(summaryPath)
	if err != nil {
		return err
	}
	log.Infof("   Tests: %d, Passed: %d, Failed: %d", summary.Total, summary.Passed, summary.Failed)

	log.Infof("📥 Loading notification config from: %s", configPath)
	overrides, err := notify.LoadOverrides()
	if err != nil {
		return err
	}
	cfg, err := notify.LoadConfig(configPath, overrides)
	if err != nil {
		return err
	}
	log.Infof("   Email enabled: %t", cfg.EnableEmail)
	log.Infof("   Google Chat enabled: %t", cfg.EnableGoogleChat)

	if errs := notify.Dispatch(ctx, summary, cfg, o.Channels); len(errs) > 0 {
		log.WithField("Failed channels", len(errs)).Warn("Some notifications were not delivered")
	}
	return nil
}
