// Package mailservice composes and dispatches outbound email.
//
// A Service turns a logical SendRequest into a fully formed message: it
// resolves configuration, picks content by a fixed priority, renders named
// templates, wraps the result in a shared HTML layout with a derived
// plain-text rendition, suppresses duplicate sends and hands the message to
// a transport.
//
// # Basic Usage
//
//	svc, err := mailservice.New(
//		mailservice.WithSendGrid(os.Getenv("SENDGRID_API_KEY")),
//		mailservice.WithSender("noreply@example.com", "Example"),
//		mailservice.WithBrand("Example", "support@example.com"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer svc.Close()
//
//	res, err := svc.Send(ctx, &mailservice.SendRequest{
//		To:           []string{"Ann <ann@example.com>"},
//		Template:     "welcome",
//		TemplateData: map[string]any{"name": "Ann"},
//	})
//
// # Content Priority
//
// HTML wins over Body, Body over Text, and Text over template output. The
// subject is the explicit Subject, else the template subject, else
// "Message from <brand>". Text is escaped before it is embedded. A request
// with no content at all fails with *ContentRequiredError before any
// transport is contacted.
//
// # Transports
//
//   - log: logs the message and delivers nothing (the default)
//   - smtp
//   - sendgrid
//   - resend
//   - ses (Amazon SES)
//   - mailgun
//
// A transport whose credentials are missing, or that cannot be constructed,
// is replaced by the log transport. The fallback is logged and never
// returned to the caller; see Service.TransportOutcome.
//
// # Configuration
//
// Configuration is resolved once, on the first send: from WithConfig, else
// from the ConfigLoader (by default a FileConfigLoader reading
// mailservice.yaml and MAILSERVICE_* variables), else DefaultConfig. Loader
// failures are logged and never surfaced.
//
// # Duplicate Suppression
//
// Requests with the same order ID, first recipient and subject are sent once
// per retention window (10 minutes by default). Any failure releases the
// registration so the caller may retry. Use WithGuardStore with a Redis
// store to share the window between processes.
package mailservice
