// Package domain contains the core entities of the generation pipeline:
// jobs and their lifecycle states, the closed generation options schema,
// pipeline stages, and the artifact bundle a finished job produces.
//
// The package has no dependencies on storage, transport, or external
// services; everything here is plain data plus the validation and
// transition rules the rest of the system enforces.
package domain
