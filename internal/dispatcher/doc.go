// Package dispatcher turns a deployment request into a queued build task.
//
// Dispatch validates the repository URL, reserves a fresh project identifier,
// and hands a task spec to the configured launcher. It returns as soon as the
// launcher has accepted the task; the build itself is never awaited on the
// request path.
package dispatcher
