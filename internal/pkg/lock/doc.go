// Package lock provides keyed mutual exclusion for read-check-write
// sequences that span a store round trip.
//
// Redis serialises holders across processes with SET NX plus an owner token,
// and Local serialises goroutines inside one process. Both honour context
// cancellation while waiting.
package lock
