// Package events defines the pipeline notification events and the
// Publisher interface that decouples the progress reporter from the
// notification bridge delivering events to subscribers.
package events
