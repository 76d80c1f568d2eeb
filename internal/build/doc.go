// Package build is the build orchestrator.
//
// A Builder turns one configuration into a sequence of steps: construct the
// pipeline, run the buildBefore hook, register the metadata, contents,
// layouts, css, redirects and serve stages (each wrapped by its before and
// after hooks), run buildAfter, execute the pipeline and post-process.
//
// Every build takes a fresh generation from a shared Coordinator. Before each
// step, and once after the last, the build checks that its generation is
// still current; a build that has been overtaken stops with a superseded
// error and has no further side effects. Steps within one build run strictly
// in sequence. Builds started concurrently share nothing except the
// Coordinator.
package build
