// Package mailer delivers transactional email through an HTTP JSON
// delivery provider.
//
// The client posts one message per call and never retries; retry
// semantics belong to the automation engine's scan cycle, which
// re-attempts failed candidates on the next pass.
package mailer
