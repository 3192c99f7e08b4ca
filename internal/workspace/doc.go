// Package workspace manages the per-deployment directories used when builds run
// as local child processes.
//
// Every deployment gets its own ephemeral directory (for example
// sitedeploy-brave-quiet-otter-20251214-122336-1234) so concurrent builds never
// share a filesystem path. Directories are removed when the build finishes; the
// janitor sweeps any that outlive their process.
package workspace
