// Package units contains the processing units the build stages register on
// the engine pipeline. Constructors validate their options up front so that
// a bad option surfaces while a stage registers work rather than during
// execution.
package units
