// Package email implements verification email delivery.
//
// It contains the provider backends (SMTP via go-mail, Resend over its HTTP
// API), the template generator that is the single source of truth for
// message content, and the Dispatcher that selects exactly one backend from
// the resolved configuration and normalizes every attempt into an Outcome.
//
// Backends never retry and never let a fault escape their boundary: every
// failure surfaces as an error that the Dispatcher converts into
// Outcome{Sent: false, Reason: ...} with a sanitized, provider-tagged reason.
package email
