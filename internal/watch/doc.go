// Package watch implements watch mode: an fsnotify watcher filtered by
// doublestar globs, an optional periodic rebuild, and the controller that
// turns changes into builds and successful builds into browser refreshes.
package watch
