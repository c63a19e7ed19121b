// Package executor houses implementations of the core.Executor boundary: the
// collaborator that actually runs a worker's task and reports progress back
// through the core.EventSink. Vendor-backed executors live in sub-packages
// (anthropic, openai); this package provides the scriptable Mock used by
// tests and examples.
package executor
