// Package host describes the boundary between the linkdrop state machine and
// the execution host that runs it: who is calling, how much value is attached,
// the account-affecting actions the host performs after a call returns, and
// the promise results it reports back to a callback.
package host
