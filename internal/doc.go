// Package internal holds token-handle primitives shared by the root engine
// and the ledger stores. It is not part of the public API.
package internal
