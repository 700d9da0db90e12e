package mailgun

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/mailservice/internal/core"
)

func TestNewTransport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings core.ProviderSettings
		field    string
	}{
		{name: "missing api key", settings: core.ProviderSettings{"domain": "mg.example.com"}, field: "api_key"},
		{name: "missing domain", settings: core.ProviderSettings{"api_key": "key"}, field: "domain"},
		{name: "ok", settings: core.ProviderSettings{"api_key": "key", "domain": "mg.example.com"}},
		{name: "eu", settings: core.ProviderSettings{"api_key": "key", "domain": "mg.example.com", "base_url": BaseURLEU}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr, err := NewTransport(tt.settings, zerolog.Nop())
			if tt.field != "" {
				var verr *core.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, tt.field, verr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Name, tr.Name())
		})
	}
}

func TestBuildMessage(t *testing.T) {
	t.Parallel()

	message, err := buildMessage(&core.Message{
		From:     core.Address{Email: "shop@example.com"},
		To:       []core.Address{{Email: "ann@example.com"}, {Email: "bob@example.com"}},
		CC:       []core.Address{{Email: "cc@example.com"}},
		BCC:      []core.Address{},
		ReplyTo:  &core.Address{Email: "support@example.com"},
		Subject:  "Receipt",
		HTML:     "<p>Thanks</p>",
		Text:     "Thanks",
		Headers:  map[string]string{"X-Order": "42"},
		Metadata: map[string]string{"order_id": "42"},
		Attachments: []core.Attachment{
			{Filename: "receipt.pdf", Content: []byte("pdf")},
			{Filename: "logo.png", Content: []byte{1}, Inline: true},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, message)
}
