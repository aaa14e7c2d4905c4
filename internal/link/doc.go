// Package link implements the host side of the chunked request/response
// protocol spoken with a peripheral over a packet transport.
//
// Every logical operation sends exactly one command packet and then reads
// either one response packet or, for message bodies, as many packets as the
// previously declared size requires. An Engine serializes operations; it never
// retries and never returns partially reassembled data.
package link
