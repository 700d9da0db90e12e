/*
Package cmd provides the CLI commands for the mail service.
*/
package cmd

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lattiq/mailservice"
)

type rootOptions struct {
	cfgFile string
	verbose bool
	debug   bool
	logger  *log.Logger
}

// Execute runs the root command with the process arguments.
func Execute() error {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		log.Error("command failed", "err", err)
		return err
	}
	return nil
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "mailservice",
		Short: "Compose and send transactional email",
		Long: `mailservice renders a message from raw content or a named template,
wraps it in the shared layout and delivers it through the configured
transport (log, smtp, sendgrid, resend, ses or mailgun).

Configuration is read from mailservice.yaml (or --config) and MAILSERVICE_*
environment variables. Without configuration the log transport is used and
nothing is delivered.

Example:
  mailservice send --to ann@example.com --subject Hi --text "Hello"
  mailservice send --to ann@example.com --template welcome --data name=Ann
  mailservice check`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.logger = log.NewWithOptions(stderr, log.Options{Prefix: "mailservice"})
			switch {
			case opts.debug:
				opts.logger.SetLevel(log.DebugLevel)
			case opts.verbose:
				opts.logger.SetLevel(log.InfoLevel)
			default:
				opts.logger.SetLevel(log.WarnLevel)
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./mailservice.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug output")

	root.AddCommand(newSendCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newVersionCmd())

	return root
}

// serviceLogger returns the zerolog logger handed to the library.
func (o *rootOptions) serviceLogger(w io.Writer) zerolog.Logger {
	level := zerolog.WarnLevel
	switch {
	case o.debug:
		level = zerolog.DebugLevel
	case o.verbose:
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func (o *rootOptions) newService(w io.Writer, extra ...mailservice.Option) (*mailservice.Service, error) {
	opts := []mailservice.Option{mailservice.WithLogger(o.serviceLogger(w))}
	if o.cfgFile != "" {
		opts = append(opts, mailservice.WithConfigFile(o.cfgFile))
	}
	return mailservice.New(append(opts, extra...)...)
}
