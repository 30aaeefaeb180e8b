// Package reconcile converges the persisted notification instances of one
// (guild, channel) batch to a desired configuration.
//
// A run loads the batch (Loader), plans one action per instance key,
// materializes the concrete schedule of every created or updated instance,
// applies the actions through storage.Store and finally notifies the board
// once. Validation problems abort the run before anything is written;
// per-instance store or template failures are collected in the Report.
package reconcile
