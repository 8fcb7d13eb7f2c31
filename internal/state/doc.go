// Package state keeps a live snapshot of resource states.
//
// A Cache owns two loops over a resource.Collection:
//
//   - the poll loop ticks every Interval and re-reads each non-event
//     resource when its poll countdown reaches zero
//   - the event loop wakes on the shared Signal and re-reads every
//     event-driven resource
//
// Both loops raise the Signal after a pass that changed the snapshot, so
// publishers and recorders can block on it instead of polling.
//
// # Reading without losing changes
//
// WaitStates waits for the next signal only. Long-lived consumers such as
// the advertiser use Watch, whose Next also returns for signals raised while
// the consumer was busy.
//
// # Diffs
//
// Diff computes the entries that changed between two snapshots. Numeric
// values compare by value, so a state that went through JSON as 70.0 still
// equals the driver's 70.
package state
