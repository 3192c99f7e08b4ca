// Package git checks out the repository a deployment builds.
//
// The build worker clones the requested repository into its working directory
// before running the build command. Clone failures are translated into
// classified errors so the worker can report them with a stable category.
package git
