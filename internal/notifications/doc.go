// Package notifications delivers pipeline events via ntfy.
//
// The default implementation posts to the topic URL configured in
// config.toml and degrades to a no-op when no topic is set. Each event
// family (quality gate, pipeline completion, errors) can be switched off
// independently. Callers depend only on the Service interface.
package notifications
