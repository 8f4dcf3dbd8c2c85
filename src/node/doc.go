// Package node implements the reactive component of a DNCP node.
//
// The protocol core (package dncp) is single-threaded and never blocks: it is
// told the time, asks for a timeout, and hands datagrams to a platform. Node
// is that platform. It owns one core and serialises every call into it behind
// a lock, from three sources:
//
// - the ControlTimer, which fires when the core asked to be run again
//
// - the transport's consumer channel, which carries received datagrams
//
// - the public accessors, used by the HTTP service and the engine
//
// Identifiers
//
// The own node identifier is derived from the hash of the transport's hardware
// addresses, or from a configured seed. When another node claims the same
// identifier twice, the node moves to a fresh random identifier.
//
// Validation
//
// Data received from other nodes is passed through a validator before it
// becomes visible to subscribers. The default accepts the well-formed prefix
// of the TLV blob; hashes always cover the raw data.
package node
