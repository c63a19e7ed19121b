// Package core centralizes the domain contracts of swarmdeck: sessions,
// workers and their lifecycle state machine, typed inter-agent messages,
// the executor boundary and the error taxonomy. Implementations (inbox
// stores, executors, the session manager) live in sibling packages and
// depend on core, never the other way around. Keeping the contracts here
// prevents higher level packages from depending on concrete storage or
// transport choices.
package core
