// Package pipeline runs reconstruction events through an ordered list of
// stages.
//
// It wires the track finder and the persistence sink into one processing
// flow for batch runs over stored events. The pipeline does not own domain
// logic; it delegates to the finder and to storage adapters.
package pipeline
