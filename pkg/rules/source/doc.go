// Package source loads rule modules from .rego files on disk and watches
// the directory for changes. The watcher debounces rapid saves into a
// single reload and never replaces a working rule set with a broken one.
package source
