package lifecycle

import "fmt"

// State of one installed cache manager instance.
type State string

const (
	StateUninstalled State = "uninstalled"
	StateInstalling  State = "installing"
	StateInstalled   State = "installed"
	StateActivating  State = "activating"
	StateActive      State = "active"
	// StateRedundant is terminal: the install failed or a newer instance
	// was activated.
	StateRedundant State = "redundant"
)

// EventKind keys the dispatch table of lifecycle handlers.
type EventKind string

const (
	EventInstall  EventKind = "install"
	EventActivate EventKind = "activate"
	EventFetch    EventKind = "fetch"
)

// Begin returns the transient state entered when event starts from state.
func Begin(from State, event EventKind) (State, error) {
	switch {
	case event == EventInstall && from == StateUninstalled:
		return StateInstalling, nil
	case event == EventActivate && from == StateInstalled:
		return StateActivating, nil
	case event == EventFetch && from == StateActive:
		return StateActive, nil
	}
	return from, fmt.Errorf("illegal %s event in state %s", event, from)
}

// Complete returns the state after event finished from a transient state.
// A failed install or activate makes the instance redundant.
func Complete(from State, event EventKind, ok bool) State {
	if !ok && event != EventFetch {
		return StateRedundant
	}
	switch {
	case event == EventInstall && from == StateInstalling:
		return StateInstalled
	case event == EventActivate && from == StateActivating:
		return StateActive
	}
	return from
}

// Serving reports whether fetch events are handled in this state.
func (s State) Serving() bool { return s == StateActive }
