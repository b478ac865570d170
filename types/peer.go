package types

// PeerID is an opaque handle identifying a peer on the transport layer
// (libp2p peer id, or equivalent). Its internal representation is owned by
// the peer transport collaborator (spec.md §4.11); the core only ever
// compares, stores, and forwards it.
type PeerID string
