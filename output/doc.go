// Package output turns sensor data events into broker messages.
//
// Every sensor owns a topic subtree under the configured prefix:
//
//	<prefix><topic>/Label       retained, published once at startup
//	<prefix><topic>/Value       the raw reading, every cycle
//	<prefix><topic>/CloudEvent  optional JSON envelope, every cycle
//
// The envelope topic can be overridden per sensor. Emission degrades
// rather than fails: a publish error is logged and counted, and the next
// cycle carries fresh values anyway.
package output
