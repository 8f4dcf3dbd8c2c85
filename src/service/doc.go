// Package service implements the HTTP API of a dncpd node.
//
// All responses are JSON:
//
//  GET    /stats         node and protocol counters
//  GET    /nodes         every known node, reachable or not
//  GET    /nodes/<id>    one node with its TLVs, id in hex
//  GET    /endpoints     endpoints with their Trickle state
//  GET    /neighbors     the own node's neighbor relations
//  GET    /tlvs          the TLVs the own node publishes
//  POST   /tlvs          publish {"type": 42, "value": "0x..."}
//  DELETE /tlvs          withdraw the same body
//
// /events upgrades to a websocket that streams the node's change
// notifications, one JSON Event per text message.
package service
