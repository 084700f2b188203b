// Package checkbox owns the shared checkbox array: loading it from a snapshot store,
// serving consistent reads, applying single-cell mutations, and persisting it periodically.
package checkbox
