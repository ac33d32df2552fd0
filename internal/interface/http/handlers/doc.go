// Package handlers holds the pieces of the HTTP adapter that do not depend
// on the router: the composite health checker behind /health and /ready.
//
// Checks run in parallel, each under its own deadline:
//
//	checker := handlers.NewCompositeHealthChecker("0.1.0")
//	checker.AddCheck("postgres", handlers.NewPingCheck(store))
//	checker.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
//
// A failing optional check marks the service degraded but keeps it ready:
// the engine runs without its cache and lock.
package handlers
