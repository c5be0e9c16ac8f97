// Package watchfs turns filesystem activity under the watched roots into
// batches of settled file paths.
//
// The Watcher adapts fsnotify into a neutral Event stream, following newly
// created subdirectories. The Debouncer holds a deadline per path in a
// min-heap serviced by one goroutine; every write pushes the path's deadline
// out by the quiet window, and paths whose deadline expires in the same tick
// flush together as one batch so related files reach the grouping resolver
// at once. Temp artifacts and hidden files never enter the debouncer.
//
// The clock is injectable so debounce behavior is testable without sleeping.
package watchfs
