// Package mqttclient wraps the Eclipse Paho v2 autopaho session in the
// small surface the rest of the process needs: connect with bounded
// startup retries, publish with optional retain, and topic subscriptions
// that survive reconnects.
//
// The client owns its subscription table. Handlers registered through
// Subscribe are kept in the client and re-subscribed on every connection
// establishment, so a broker restart restores the full subscription set
// without caller involvement.
package mqttclient
