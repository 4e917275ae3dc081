// Package maintenance runs eviction passes in the background.
//
// Every process that hosts a Scheduler competes for a flock on the
// maintenance lock file at the start of each cycle. The holder runs one
// eviction pass and releases the lock; the others skip and try again on their
// next cycle. Sleeps between cycles include uniform random jitter so that
// several instances started together drift apart.
//
// A failing or panicking pass never stops the loop. The scheduler logs the
// failure, sleeps the configured backoff, and tries again. Run returns only
// when its context is cancelled.
package maintenance
