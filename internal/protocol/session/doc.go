// Package session owns the host side of the device pull protocol.
//
// Ownership boundary:
// - wire tokens and the chunk-length header
// - readiness handshake (READY? / YES!)
// - pull request wait and acknowledgement (RD? / ACK!)
// - retry policy and backoff for both waits
//
// A Session is the single context object for one open channel. It is not safe
// for concurrent use; every read and write happens on the caller's goroutine.
package session
