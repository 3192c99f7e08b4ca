// Package build implements the build worker that runs inside every launched task.
//
// A run checks out the repository, executes the build command in the checkout,
// and uploads the produced output directory to the artifact store under the
// project's namespace. Uploads happen only after the command exits with status
// zero. A failed upload does not stop the others; the run then reports partial
// success with the keys that could not be stored.
package build
