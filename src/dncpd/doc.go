// Package dncpd assembles a complete node from a config.Config: a transport
// (link-local UDP multicast, or the in-memory simulator), the reactor that
// drives the protocol core, and the optional HTTP service.
//
//  engine := dncpd.NewDncpd(config.NewDefaultConfig())
//  if err := engine.Init(); err != nil {
//  	...
//  }
//  engine.Run()
package dncpd
