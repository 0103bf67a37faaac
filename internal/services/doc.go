// Package services defines shared utilities consumed by the conversion
// pipeline and the wrappers around external tools.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, batch item indexes, and
//     pipeline stage names for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into stable exit codes for automation callers.
//   - Typed failures for missing tools and failed backend processes so the
//     CLI can surface install hints and captured diagnostics.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error classification, observability) stays uniform.
package services
