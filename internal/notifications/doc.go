// Package notifications delivers queue events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Queue milestones
// and errors can be switched off independently; suppressed events return nil
// without touching the network.
//
// Workflow code depends only on the Service interface.
package notifications
