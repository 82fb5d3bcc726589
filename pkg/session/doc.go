/*
Package session serializes access to one project's state within a single
process.

There is no distributed lock: a single active learner session per project is
assumed, and concurrent edits resolve last-write-wins at the store. The
manager's per-project lock is the advisory guard that keeps one learner
action (and its at-most-one reasoning call) in flight at a time.
*/
package session
