// Package dncp implements the core of the Distributed Node Consensus Protocol.
//
// A Core holds the locally published TLVs, the table of every known node and
// its versioned data, the endpoints the protocol runs on, and the Trickle
// state of each endpoint. Nodes converge on an identical view of every
// reachable node's data by multicasting a digest of the whole network state
// and fetching, over unicast, the state of nodes whose digest differs.
//
// The Core does no I/O of its own and spawns no goroutines. Everything it
// needs from the platform (clock, timer, datagram send and receive, hash
// function, data validation, identity seed, collision policy) goes through
// the Ext interface, and it is driven by two entry points:
//
//	Run   called when the timeout requested through Ext.ScheduleTimeout fires
//	Poll  called when datagrams are ready to be read through Ext.Recv
//
// A Core is not safe for concurrent use. Callers that touch it from more than
// one goroutine must serialise every call, including the read-only ones.
package dncp
