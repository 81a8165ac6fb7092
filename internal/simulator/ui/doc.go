// Package ui implements the `simulate` subcommand's terminal renderer: a
// radar canvas, a system-metrics panel, a filter-status panel, and a
// top-10 alerts table, drawn directly on a tcell cell buffer since tcell
// has no built-in widget layer. See internal/simulator/pipeline.Renderer
// for the contract this package implements.
package ui
