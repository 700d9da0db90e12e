package mailservice_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/mailservice"
)

func TestSendEmail_InfersContent(t *testing.T) {
	t.Parallel()

	type invoice struct {
		Name   string `json:"name"`
		Amount int    `json:"amount"`
	}

	seen := make(chan mailservice.TemplateContext, 4)
	units := mailservice.MapResolver{
		"billing/invoice": &mailservice.TemplateUnit{
			HTML: func(c mailservice.TemplateContext) (string, error) {
				seen <- c
				return "<p>invoice</p>", nil
			},
			Subject: func(mailservice.TemplateContext) (string, error) { return "Your invoice", nil },
		},
	}

	tests := []struct {
		name        string
		subject     string
		content     any
		wantSubject string
		htmlHas     string
		wantData    map[string]any
	}{
		{name: "html string", subject: "Hi", content: "<h1>Hello</h1>", wantSubject: "Hi", htmlHas: "<h1>Hello</h1>"},
		{name: "plain string", subject: "Hi", content: "a < b", wantSubject: "Hi", htmlHas: "a &lt; b"},
		{name: "bytes", subject: "Hi", content: []byte("raw"), wantSubject: "Hi", htmlHas: "raw"},
		{name: "map", subject: "billing/invoice", content: map[string]any{"name": "Ann"}, wantSubject: "Your invoice", htmlHas: "<p>invoice</p>", wantData: map[string]any{"name": "Ann"}},
		{name: "struct", subject: "billing/invoice", content: invoice{Name: "Bo", Amount: 12}, wantSubject: "Your invoice", htmlHas: "<p>invoice</p>", wantData: map[string]any{"name": "Bo", "amount": 12}},
		{name: "struct pointer", subject: "billing/invoice", content: &invoice{Name: "Cy"}, wantSubject: "Your invoice", htmlHas: "<p>invoice</p>", wantData: map[string]any{"name": "Cy", "amount": 0}},
		{name: "nil", subject: "billing/invoice", content: nil, wantSubject: "Your invoice", htmlHas: "<p>invoice</p>", wantData: map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockTransport()
			svc := newService(t, mailservice.WithTransport(m), mailservice.WithTemplateResolver(units))

			_, err := svc.SendEmail(context.Background(), []string{"a@x.com"}, tt.subject, tt.content)
			require.NoError(t, err)

			msg := sentMessage(t, m, 0)
			assert.Equal(t, tt.wantSubject, msg.Subject)
			assert.Contains(t, msg.HTML, tt.htmlHas)

			if tt.wantData != nil {
				c := <-seen
				assert.Equal(t, tt.wantData, c.Data)
				assert.Equal(t, "a@x.com", c.Recipient.Email)
			}
		})
	}
}

func TestSendEmail_UnsupportedContent(t *testing.T) {
	t.Parallel()

	m := newMockTransport()
	svc := newService(t, mailservice.WithTransport(m))

	_, err := svc.SendEmail(context.Background(), []string{"a@x.com"}, "Hi", 42)
	var verr *mailservice.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "content", verr.Field)
}

func TestSendEmail_Options(t *testing.T) {
	t.Parallel()

	m := newMockTransport()
	svc := newService(t, mailservice.WithTransport(m))

	_, err := svc.SendEmail(context.Background(), []string{"a@x.com"}, "Hi", "Hello",
		mailservice.WithCC("cc@x.com"),
		mailservice.WithBCC("bcc@x.com"),
		mailservice.WithReplyTo("reply@x.com"),
		mailservice.WithFrom("from@x.com", "Sender"),
		mailservice.WithRecipient("Ann", "a@x.com"),
		mailservice.WithHeader("X-Test", "1"),
		mailservice.WithMetadata("campaign", "spring"),
		mailservice.WithAttachments(mailservice.Attachment{Filename: "a.txt", Content: []byte("a")}),
		mailservice.WithRequestThemeColor("#123456"),
	)
	require.NoError(t, err)

	msg := sentMessage(t, m, 0)
	require.Len(t, msg.CC, 1)
	assert.Equal(t, "cc@x.com", msg.CC[0].Email)
	require.Len(t, msg.BCC, 1)
	assert.Equal(t, "bcc@x.com", msg.BCC[0].Email)
	assert.Equal(t, "reply@x.com", msg.ReplyTo.Email)
	assert.Equal(t, mailservice.Address{Name: "Sender", Email: "from@x.com"}, msg.From)
	assert.Contains(t, msg.HTML, "Hello Ann,")
	assert.Contains(t, msg.HTML, "#123456")
	assert.Equal(t, "1", msg.Headers["X-Test"])
	assert.Equal(t, "spring", msg.Metadata["campaign"])
	require.Len(t, msg.Attachments, 1)
}

func TestSendTemplateEmail(t *testing.T) {
	t.Parallel()

	m := newMockTransport()
	svc := newService(t, mailservice.WithTransport(m))

	_, err := svc.SendTemplateEmail(context.Background(), []string{"a@x.com"}, "notification",
		map[string]any{"title": "Build finished", "message": "All green"},
		mailservice.WithSubject("CI"),
	)
	require.NoError(t, err)

	msg := sentMessage(t, m, 0)
	assert.Equal(t, "CI", msg.Subject)
	assert.Contains(t, msg.HTML, "All green")
}
