package layout_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/mailservice/internal/core"
	"github.com/lattiq/mailservice/internal/layout"
)

func fixedClock() time.Time {
	return time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
}

func TestCompositor_Compose(t *testing.T) {
	t.Parallel()

	c := layout.New(layout.WithClock(fixedClock))

	out, err := c.Compose(layout.Input{
		Content:   `<p>Your order <strong>#42</strong> shipped.</p>`,
		Subject:   "Order shipped",
		Brand:     core.Brand{Name: "Acme", SupportEmail: "help@acme.test"},
		Recipient: &core.Recipient{Name: "Ann"},
	})
	require.NoError(t, err)

	assert.Contains(t, out.HTML, `<p>Your order <strong>#42</strong> shipped.</p>`)
	assert.Contains(t, out.HTML, "<h1>Acme</h1>")
	assert.Contains(t, out.HTML, "<title>Order shipped</title>")
	assert.Contains(t, out.HTML, "Hello Ann,")
	assert.Contains(t, out.HTML, "&copy; 2026 Acme. All rights reserved.")
	assert.Contains(t, out.HTML, "Need help? Contact")
	assert.Contains(t, out.HTML, "help@acme.test")
	assert.Contains(t, out.HTML, "background-color: #667eea")
	assert.Equal(t, "Your order #42 shipped.", out.Text)
	assert.Equal(t, "Order shipped", out.Subject)
}

func TestCompositor_ComposeDeterministic(t *testing.T) {
	t.Parallel()

	c := layout.New(layout.WithClock(fixedClock))
	in := layout.Input{Content: "<p>x</p>", Subject: "s", Brand: core.Brand{Name: "B"}}

	first, err := c.Compose(in)
	require.NoError(t, err)
	second, err := c.Compose(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompositor_GenericGreetingAndNoSupport(t *testing.T) {
	t.Parallel()

	c := layout.New(layout.WithClock(fixedClock))

	out, err := c.Compose(layout.Input{Content: "<p>x</p>", Subject: "s", Brand: core.Brand{Name: "B"}})
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "Hello,")
	assert.NotContains(t, out.HTML, "Need help?")

	out, err = c.Compose(layout.Input{Content: "<p>x</p>", Subject: "s", Recipient: &core.Recipient{Email: "a@b.c"}})
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "Hello,")
}

func TestCompositor_EscapesRecipientAndSubject(t *testing.T) {
	t.Parallel()

	c := layout.New(layout.WithClock(fixedClock))

	out, err := c.Compose(layout.Input{
		Content:   "<p>ok</p>",
		Subject:   `<script>alert(1)</script>`,
		Recipient: &core.Recipient{Name: `<b>Eve</b>`},
	})
	require.NoError(t, err)
	assert.NotContains(t, out.HTML, "<script>")
	assert.NotContains(t, out.HTML, "<b>Eve</b>")
	assert.Contains(t, out.HTML, "&lt;b&gt;Eve&lt;/b&gt;")
}

func TestCompositor_ThemeColor(t *testing.T) {
	t.Parallel()

	c := layout.New(layout.WithClock(fixedClock))

	out, err := c.Compose(layout.Input{Content: "<p>x</p>", Subject: "s", ThemeColor: "#ff0000"})
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "background-color: #ff0000")

	out, err = c.Compose(layout.Input{Content: "<p>x</p>", Subject: "s", ThemeColor: "red;}body{display:none"})
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "background-color: #667eea")
	assert.NotContains(t, out.HTML, "display:none")
}

func TestCompositor_TextFallsBackToSubject(t *testing.T) {
	t.Parallel()

	c := layout.New(layout.WithClock(fixedClock))

	out, err := c.Compose(layout.Input{Content: `<img src="logo.png">`, Subject: "Logo"})
	require.NoError(t, err)
	assert.Equal(t, "Logo", out.Text)
}

func TestCompositor_Sanitizer(t *testing.T) {
	t.Parallel()

	c := layout.New(layout.WithClock(fixedClock), layout.WithUGCSanitizer())

	out, err := c.Compose(layout.Input{Content: `<p>hi</p><script>alert(1)</script>`, Subject: "s"})
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "<p>hi</p>")
	assert.NotContains(t, out.HTML, "alert(1)")
}

func TestHTMLToText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "hello", want: "hello"},
		{name: "breaks", in: "a<br>b<BR/>c<br />d", want: "a\nb\nc\nd"},
		{name: "paragraphs", in: "<p>one</p><p>two</p>", want: "one\ntwo"},
		{name: "divs", in: "<div>one</div>\n\n\n<div>two</div>", want: "one\ntwo"},
		{name: "list", in: "<ul><li>a</li><li class=\"x\">b</li></ul>", want: "• a\n• b"},
		{name: "strip tags", in: "<span style=\"color:red\">red</span> <em>text</em>", want: "red text"},
		{name: "blank runs", in: "a\n \n\t\n b", want: "a\n b"},
		{name: "trim", in: "  <p> x </p>  ", want: "x"},
		{name: "entities kept", in: "<p>&lt;b&gt;</p>", want: "&lt;b&gt;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, layout.HTMLToText(tt.in))
		})
	}
}

func TestHTMLToText_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"<h1>Title</h1><p>Para<br>line</p><ul><li>one</li><li>two</li></ul>",
		"a < b and c > d",
		"<<b>>nested<</b>>",
		"\r\n<div>\r\n x \r\n</div>\r\n\r\n",
		"• already\n• text",
	}

	for _, in := range inputs {
		once := layout.HTMLToText(in)
		assert.Equal(t, once, layout.HTMLToText(once), "input %q", in)
	}
}

func TestTextToHTML(t *testing.T) {
	t.Parallel()

	out := layout.TextToHTML("Tom & \"Jerry\" <3 'cheese'\nline two")
	assert.NotContains(t, strings.TrimPrefix(strings.TrimSuffix(out, "</div>"), `<div class="text-content">`), "<3")
	assert.Contains(t, out, "Tom &amp; &#34;Jerry&#34; &lt;3 &#39;cheese&#39;<br>line two")
}

func TestLooksLikeHTML(t *testing.T) {
	t.Parallel()

	assert.True(t, layout.LooksLikeHTML("<p>hi</p>"))
	assert.True(t, layout.LooksLikeHTML("hello<br/>world"))
	assert.False(t, layout.LooksLikeHTML("1 < 2 and 3 > 2"))
	assert.False(t, layout.LooksLikeHTML("plain"))
}
