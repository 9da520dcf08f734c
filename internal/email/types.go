package email

import (
	"context"
	"errors"

	"github.com/dropDatabas3/verimail/internal/config"
)

// Message is a fully rendered email. It is built fresh per dispatch call and
// owned exclusively by that call.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender is the capability contract every provider backend implements.
// Send blocks for at most the deadline carried by ctx; it does not retry.
type Sender interface {
	// Name identifies the backend for logs and metrics.
	Name() config.Provider

	// Send attempts a single delivery. The returned error never contains
	// credentials or tokens.
	Send(ctx context.Context, msg Message) error
}

// Outcome is the tagged result of a delivery attempt. It is never silently
// dropped: the Dispatcher returns it to every caller, sync or async.
type Outcome struct {
	Provider config.Provider
	Sent     bool
	// Reason is a stable, sanitized failure description. Empty when Sent.
	Reason string
}

// ErrUnknownProvider reports an internal inconsistency: a selector value
// that survived config validation but matches no backend. Dispatch fails
// closed on it instead of defaulting to a provider.
var ErrUnknownProvider = errors.New("email: unknown provider selector")
