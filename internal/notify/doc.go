// Package notify is the in-process event notification engine.
//
// An Engine distributes feedback-domain events to subscribers scoped by
// project. Every published event is appended to a bounded per-project
// history, which is replayed to subscribers when they join. Each delivery
// runs inside its own failure boundary: a handler that returns an error or
// panics is disconnected and the remaining subscribers still receive the
// event.
//
// Publish and Subscribe are serialized against each other and are
// synchronous: they return only after every matching handler has been
// attempted. Handlers must therefore not block indefinitely, and must not
// call Publish or Subscribe on the engine that is delivering to them.
// Unsubscribing (any subscriber, including itself) from inside a handler is
// allowed.
//
// State lives in process memory only and is lost on restart.
package notify
