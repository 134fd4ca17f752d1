// Package actor provides the middleware attributing requests to an actor.
//
// Authentication happens in front of this service. The authenticating
// gateway forwards the identity of the caller in request headers:
//   - X-Actor-ID
//   - X-Actor-Name
//   - X-Actor-Email
//
// The middleware stores the actor in fiber.Locals, handlers read it with
// FromCtx and pass it into the history of every change.
//
// Usage:
//
//	app.Use(actor.Middleware)
package actor
