package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show the resolved configuration and transport",
		Long: `Resolve configuration the way a send would and report which
transport would be used. A transport with missing credentials is reported
as falling back to the log transport.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := root.newService(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer svc.Close()

			cfg := svc.Config(cmd.Context())
			if !showSecrets {
				for key := range cfg.Transport.Settings {
					switch key {
					case "api_key", "password", "secret_key", "session_token":
						cfg.Transport.Settings[key] = "********"
					}
				}
			}

			raw, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, string(raw))

			name := svc.TransportName(cmd.Context())
			outcome := svc.TransportOutcome()
			if outcome.FellBack() {
				fmt.Fprintf(out, "\ntransport: %s (requested %s, %s: %v)\n", name, outcome.Requested, outcome.Reason, outcome.Err)
				fmt.Fprintf(out, "available: %s\n", strings.Join(svc.AvailableTransports(), ", "))
				return nil
			}
			fmt.Fprintf(out, "\ntransport: %s\n", name)
			fmt.Fprintf(out, "available: %s\n", strings.Join(svc.AvailableTransports(), ", "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print credentials in clear text")
	return cmd
}
