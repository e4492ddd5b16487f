// Package service drives the bridge's control loop. The Poller retrieves
// events from all configured providers once per interval and hands them to
// the output emitter, publishing the retained sensor labels once at
// startup. Shutdown interrupts the inter-cycle delay within half a second.
package service
