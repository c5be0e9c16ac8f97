// Package workflow drains the classification queue. A single manager
// goroutine picks the next ready unit (a lone job, a complete group, or a
// priority job), marks its members processing, calls the classification
// gateway once per unit, and applies the results or the failure back to the
// store. The loop also tracks stalls: ready work that nothing has started
// within the stall timeout triggers a recovery pass that ignores normal
// ordering.
package workflow
