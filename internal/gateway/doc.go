// Package gateway exposes link engine operations over HTTP.
//
// Every handler performs one logical engine operation; the engine serializes
// concurrent requests onto the single link.
package gateway
