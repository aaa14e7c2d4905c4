// Package peer simulates the peripheral side of the link: named stream queues
// answered through the same packet and messaging codecs the host uses.
//
// A Device satisfies transport.Transport directly for in-process use, and
// Serve exposes it over the byte-stream bridge.
package peer
