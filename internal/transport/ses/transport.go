// Package ses delivers messages through Amazon SES.
package ses

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/lattiq/mailservice/internal/core"
)

// Name is the transport identifier.
const Name = "ses"

// API is the subset of the SES client used by the transport.
type API interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Transport implements core.Transport for AWS SES.
type Transport struct {
	client           API
	configurationSet string
	logger           zerolog.Logger
}

// NewTransport creates an SES transport. Recognised keys: region, access_key,
// secret_key, session_token, configuration_set. Without static keys the
// default AWS credential chain applies.
func NewTransport(settings core.ProviderSettings, logger zerolog.Logger) (core.Transport, error) {
	region := settings.Get("region")
	if region == "" {
		return nil, core.NewValidationError("region", "AWS region is required")
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, core.NewProviderError(Name, "config_error", "failed to load AWS config: "+err.Error())
	}

	if accessKey := settings.Get("access_key"); accessKey != "" {
		secretKey := settings.Get("secret_key")
		if secretKey == "" {
			return nil, core.NewValidationError("secret_key", "secret key is required when access key is provided")
		}

		sessionToken := settings.Get("session_token")
		cfg.Credentials = aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     accessKey,
				SecretAccessKey: secretKey,
				SessionToken:    sessionToken,
			}, nil
		})
	}

	return New(ses.NewFromConfig(cfg), settings.Get("configuration_set"), logger), nil
}

// New creates a transport on an existing SES client.
func New(client API, configurationSet string, logger zerolog.Logger) *Transport {
	return &Transport{
		client:           client,
		configurationSet: configurationSet,
		logger:           logger.With().Str("transport", Name).Logger(),
	}
}

// Send implements core.Transport. The simple SendEmail API carries no
// attachments, so messages with attachments are rejected.
func (t *Transport) Send(ctx context.Context, msg *core.Message) (*core.Result, error) {
	if msg.HasAttachments() {
		return nil, core.NewValidationError("attachments", "attachments are not supported by the SES transport")
	}

	output, err := t.client.SendEmail(ctx, t.buildInput(msg))
	if err != nil {
		t.logger.Warn().Err(err).Msg("ses rejected message")
		perr := core.NewProviderErrorWithCause(Name, "send_error", err)
		perr.IsTemporary = isThrottle(err)
		return nil, perr
	}

	return &core.Result{
		Success:   true,
		Transport: Name,
		MessageID: aws.ToString(output.MessageId),
		Timestamp: time.Now(),
	}, nil
}

// Name implements core.Transport.
func (t *Transport) Name() string {
	return Name
}

func (t *Transport) buildInput(msg *core.Message) *ses.SendEmailInput {
	input := &ses.SendEmailInput{
		Source: aws.String(msg.From.String()),
		Destination: &types.Destination{
			ToAddresses: addressList(msg.To),
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(msg.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{},
		},
	}

	if len(msg.CC) > 0 {
		input.Destination.CcAddresses = addressList(msg.CC)
	}
	if len(msg.BCC) > 0 {
		input.Destination.BccAddresses = addressList(msg.BCC)
	}
	if msg.ReplyTo != nil {
		input.ReplyToAddresses = []string{msg.ReplyTo.String()}
	}

	if msg.Text != "" {
		input.Message.Body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")}
	}
	if msg.HTML != "" {
		input.Message.Body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}
	}

	if t.configurationSet != "" {
		input.ConfigurationSetName = aws.String(t.configurationSet)
	}

	for name, value := range msg.Metadata {
		input.Tags = append(input.Tags, types.MessageTag{Name: aws.String(name), Value: aws.String(value)})
	}

	return input
}

func addressList(addrs []core.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func isThrottle(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "ServiceUnavailable":
			return true
		}
	}
	return false
}
