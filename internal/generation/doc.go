// Package generation defines the interfaces for the external generation
// services the pipeline calls: script, per-slide visuals, narration
// audio, and final composition. It abstracts the details of the service
// integrations behind capability interfaces, so the worker pipeline
// depends only on classified errors and timeouts, never on a specific
// provider.
package generation
