// Package board keeps a per-channel schedule message up to date.
//
// Reconcile runs call Notifier.OnBatchChanged. The daemon wires a Publisher,
// which puts a BatchChanged message on the in-process bus; the Refresher and
// the alert dispatcher both subscribe to it. Calendar renders the same data
// as iCalendar for the feed and the CLI.
package board
