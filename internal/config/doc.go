// Package config defines the application configuration schema and its
// loader. Configuration comes from environment variables (LUMEN_ prefix)
// layered over an optional config.yaml, and is validated with struct
// tags before the application starts.
package config
