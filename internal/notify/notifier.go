package notify

import "context"

// Message is one outbound email handed to the mail worker.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"htmlBody"`
}

// Notifier delivers notification messages. Implementations are best-effort;
// callers log failures and never fail the triggering operation on them.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// NotifierFunc adapts ordinary functions to Notifier.
type NotifierFunc func(ctx context.Context, message Message) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, message Message) error {
	return f(ctx, message)
}

// Noop returns a Notifier that silently drops every message. Used when no mail
// topic is configured.
func Noop() Notifier {
	return NotifierFunc(func(context.Context, Message) error { return nil })
}
