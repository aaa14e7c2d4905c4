// Package protocol groups the link wire contract.
//
// Ownership boundary:
// - packet: fixed 256-byte packet framing and marker classification
// - messaging: command codes, command arguments, response payloads
// - wire: payload plus metadata footer encoding
// - datatype: metadata type discriminator and msgpack object model
package protocol
