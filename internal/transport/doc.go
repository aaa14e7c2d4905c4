// Package transport moves fixed-size packets between the host and a
// peripheral.
//
// Ownership boundary:
// - the Transport contract consumed by the link engine
// - the byte-stream bridge that clocks packets over TCP or TLS
// - transport security validation
package transport
