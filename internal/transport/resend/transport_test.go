package resend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/mailservice/internal/core"
)

func TestNewTransport(t *testing.T) {
	t.Parallel()

	_, err := NewTransport(core.ProviderSettings{}, zerolog.Nop())
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "api_key", verr.Field)

	tr, err := NewTransport(core.ProviderSettings{"api_key": "re_123"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, Name, tr.Name())
}

func TestBuildRequest(t *testing.T) {
	t.Parallel()

	req := buildRequest(&core.Message{
		From:     core.Address{Name: "Shop", Email: "shop@example.com"},
		To:       []core.Address{{Email: "ann@example.com"}},
		CC:       []core.Address{},
		BCC:      []core.Address{{Email: "audit@example.com"}},
		ReplyTo:  &core.Address{Email: "support@example.com"},
		Subject:  "Receipt",
		HTML:     "<p>Thanks</p>",
		Text:     "Thanks",
		Headers:  map[string]string{"X-Order": "42"},
		Metadata: map[string]string{"order_id": "42", "bad tag": "x"},
		Attachments: []core.Attachment{
			{Filename: "receipt.pdf", Content: []byte("pdf"), ContentID: "r1"},
		},
	})

	assert.Equal(t, "Shop <shop@example.com>", req.From)
	assert.Equal(t, []string{"ann@example.com"}, req.To)
	assert.Nil(t, req.Cc)
	assert.Equal(t, []string{"audit@example.com"}, req.Bcc)
	assert.Equal(t, "support@example.com", req.ReplyTo)
	assert.Equal(t, "<p>Thanks</p>", req.Html)
	assert.Equal(t, "Thanks", req.Text)
	assert.Equal(t, "42", req.Headers["X-Order"])

	require.Len(t, req.Attachments, 1)
	assert.Equal(t, "application/pdf", req.Attachments[0].ContentType)
	assert.Equal(t, "r1", req.Attachments[0].ContentId)

	require.Len(t, req.Tags, 1)
	assert.Equal(t, "order_id", req.Tags[0].Name)
}

func TestTransport_Send(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_123", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re-msg-1"}`))
	}))
	t.Cleanup(srv.Close)

	tr, err := NewTransport(core.ProviderSettings{"api_key": "re_123", "base_url": srv.URL}, zerolog.Nop())
	require.NoError(t, err)

	res, err := tr.Send(context.Background(), &core.Message{
		From:    core.Address{Email: "shop@example.com"},
		To:      []core.Address{{Email: "ann@example.com"}},
		Subject: "Hi",
		Text:    "Hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "re-msg-1", res.MessageID)
	assert.Equal(t, Name, res.Transport)
	assert.Equal(t, "Hi", body["subject"])
}
