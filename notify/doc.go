// Package notify renders {{placeholder}} templates and hands the result to
// a [Notifier].
//
// Delivery is synchronous: the engine calls Send inside its open
// transaction and rolls back on any returned error.
package notify
