// Package pipeline wires detection, probing, planning, execution, and
// finalization into single conversions and bounded-parallel batches.
//
// A Runner owns no per-run state beyond its collaborators, so one Runner
// serves every item of a batch. Each item holds a destination claim from
// execution through finalize and is journaled when it finishes.
package pipeline
