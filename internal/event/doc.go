// Package event implements the synchronous publish/subscribe bus that
// connects tile components without direct references.
//
// Subscriptions are held weakly: the bus never keeps a subscriber alive.
// A caller that drops its *Subscription stops receiving events after the
// next garbage collection, with no explicit unsubscribe required.
package event
