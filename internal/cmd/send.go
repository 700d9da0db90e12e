package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lattiq/mailservice"
)

type sendOptions struct {
	to          []string
	cc          []string
	bcc         []string
	subject     string
	text        string
	html        string
	template    string
	data        []string
	dataFile    string
	attachments []string
	orderID     string
}

func newSendCmd(root *rootOptions) *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one email",
		Long: `Send one email through the configured transport.

Content is taken from --html, --text or --template, in that order of
precedence. Template data may be given as repeated --data key=value pairs
and as a YAML or JSON document with --data-file; pairs win over the file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}

			svc, err := root.newService(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer svc.Close()

			root.logger.Info("sending", "to", strings.Join(req.To, ", "), "template", req.Template)

			res, err := svc.Send(cmd.Context(), req)
			if err != nil {
				root.logger.Error("send failed", "err", err)
				return err
			}

			if out := svc.TransportOutcome(); out.FellBack() {
				root.logger.Warn("transport fell back", "requested", out.Requested, "reason", out.Reason)
			}
			if res.Duplicate {
				fmt.Fprintln(cmd.OutOrStdout(), "duplicate suppressed")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent via %s (message id %s)\n", res.Transport, res.MessageID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&opts.to, "to", nil, "recipient address (repeatable or comma separated)")
	f.StringSliceVar(&opts.cc, "cc", nil, "carbon-copy address")
	f.StringSliceVar(&opts.bcc, "bcc", nil, "blind carbon-copy address")
	f.StringVarP(&opts.subject, "subject", "s", "", "subject line")
	f.StringVar(&opts.text, "text", "", "plain-text body")
	f.StringVar(&opts.html, "html", "", "HTML body")
	f.StringVarP(&opts.template, "template", "t", "", "template name, folder/file or a bare name")
	f.StringArrayVarP(&opts.data, "data", "d", nil, "template data as key=value")
	f.StringVar(&opts.dataFile, "data-file", "", "template data file (YAML or JSON)")
	f.StringArrayVarP(&opts.attachments, "attach", "a", nil, "file to attach")
	f.StringVar(&opts.orderID, "order-id", "", "identifier used for duplicate suppression")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func (o *sendOptions) request() (*mailservice.SendRequest, error) {
	req := &mailservice.SendRequest{
		To:       o.to,
		CC:       o.cc,
		BCC:      o.bcc,
		Subject:  o.subject,
		Text:     o.text,
		HTML:     o.html,
		Template: o.template,
		OrderID:  o.orderID,
	}

	data, err := o.templateData()
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		req.TemplateData = data
	}

	for _, path := range o.attachments {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read attachment: %w", err)
		}
		req.Attachments = append(req.Attachments, mailservice.Attachment{
			Filename: filepath.Base(path),
			Content:  content,
		})
	}

	return req, nil
}

func (o *sendOptions) templateData() (map[string]any, error) {
	data := make(map[string]any)

	if o.dataFile != "" {
		raw, err := os.ReadFile(o.dataFile)
		if err != nil {
			return nil, fmt.Errorf("read data file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("parse data file %s: %w", o.dataFile, err)
		}
	}

	for _, kv := range o.data {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --data %q: expected key=value", kv)
		}
		data[strings.TrimSpace(key)] = value
	}

	return data, nil
}
