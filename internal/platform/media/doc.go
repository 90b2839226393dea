// Package media is the REST client for the media rendering service,
// covering the visual, narration and composition capabilities of the
// generation pipeline.
package media
