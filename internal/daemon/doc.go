// Package daemon wires the curator pipeline together: filesystem watchers
// feed debounced batches into job creation and completion resolution, the
// queue worker drains classification units, and periodic sweeps handle
// vanished sources and completed-job pruning. The daemon enforces
// single-instance execution with a lock file and applies configuration
// reloads to the running services.
package daemon
