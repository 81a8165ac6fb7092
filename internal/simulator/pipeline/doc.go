// Package pipeline drives ingestion of line-delimited ADS-B JSON on standard
// input through the admission manager and collision engine: parse -> admit
// -> update -> tick -> render. It owns the wall-clock tick and prune
// cadences and the stdin-reader goroutine feeding the main loop through a
// bounded channel.
package pipeline
