// Package dispatch fires reminders for enabled instances.
//
// Every (row, lead time) pair becomes one cron entry with an alertSchedule:
// the first fire is StartAt minus the lead time and later fires follow the
// row's repeat interval. A fire re-reads the row, deduplicates through the
// store and posts through a rate-limited Sender.
package dispatch
