// Package geotest provides deterministic stand-ins for the collaborators of
// a geolocation.Controller: a fake clock whose timers fire on Advance, a
// scriptable authorization gate, position sources that record Start/Stop
// and emit on demand, and a recording settings launcher.
//
// A typical test wires them together:
//
//	clock := geotest.NewFakeClock()
//	gate := geotest.NewFakeGate(geolocation.AuthorizationGranted)
//	sources := &geotest.FakeSources{}
//	c := geolocation.New(gate, geotest.NewFakeServices(true), sources.New,
//		geolocation.WithTimerFactory(clock.NewTimer))
package geotest
