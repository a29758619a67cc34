// Package search drives a steady-state epsilon-dominance evolutionary search
// over an evaluation function with three minimized objectives and one
// constraint.
//
// Offspring are bred in batches from a single seeded generator and evaluated
// concurrently; their results are folded into the population and the
// epsilon-box archive in batch order, so a seed fixes the outcome whatever
// the number of workers.
package search
