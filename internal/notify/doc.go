// Package notify is the notification bridge: a topic-keyed hub that
// fans pipeline events out to live subscribers, retains the latest event
// per topic for replay to late joiners, and exposes a websocket
// transport for push delivery. It is strictly an observer layer over the
// pipeline.
package notify
