// Package ticket defines the opaque handle that ties every reservation in
// the monitor to its lifecycle.
package ticket

// Ticket uniquely identifies one reservation. Zero is reserved as Invalid.
// Within a single Monitor instance tickets are assigned in strictly
// increasing order starting at 1 and are never reused, even across frees.
type Ticket uint64

// Invalid is returned in place of a Ticket when an operation fails.
const Invalid Ticket = 0
