// Package tracking polls the authority for the disposition of submitted
// documents and publishes status changes to the engine event hub.
//
// Each tracked document gets its own polling task with an explicit
// cancellation handle, a consecutive-failure budget, and a hard elapsed-time
// limit. Tasks are independent: a slow poll for one document never delays
// another. Batch starts stagger first polls with random jitter so a burst of
// submissions does not turn into a synchronized polling storm.
package tracking
