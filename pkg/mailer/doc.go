// Package mailer dispatches transactional email through an ordered list of
// delivery providers and renders the built-in message templates.
//
// # Dispatching
//
// A [Dispatcher] authorizes the caller against a shared secret, validates the
// message and tries each [Provider] in priority order. The first provider to
// accept the message wins; when all of them fail a [*DeliveryError] lists
// every attempt:
//
//	relay, _ := smtp.New(smtpCfg)
//	hosted, _ := resend.New(resendCfg)
//
//	d := mailer.NewDispatcher(
//		mailer.WithProviders(relay, hosted),
//		mailer.WithSharedSecret(os.Getenv("API_SECRET")),
//	)
//	res, err := d.Dispatch(ctx, &mailer.Message{To: "a@b.com", Subject: "Hi", Text: "Hello"})
//
// A blank shared secret leaves the dispatcher open. This is meant for local
// development only.
//
// # Liveness
//
// [Dispatcher.CheckRelayLiveness] handshakes with the relay on every call.
// [Dispatcher.CheckHostedAPILiveness] is served from a [LivenessCache]: five
// minutes after a successful check, one minute after a failed one. Liveness is
// reported by the health endpoint and never gates delivery.
//
// # Templates
//
// [RenderTemplate] renders one of the built-in kinds into a subject, a plain
// text body and an HTML body. Templates are markdown with YAML front matter;
// call-to-action buttons use the [!button|Label](url) syntax.
package mailer
