/*
Package event provides a type-safe, pub/sub event system for the execution
engine.

The event system lets the session manager, execution engine, and package
resolver emit notifications without taking a direct dependency on whoever
is listening (a metrics sink, an audit log, an MCP resource subscriber).

# Architecture

The package is built on top of watermill's gochannel for infrastructure while
maintaining direct-call semantics to preserve type information. It provides
both synchronous and asynchronous publishing.

# Event Types

  - session.created: a new session was allocated
  - session.evicted: a session was removed, explicitly or by the idle sweep
  - execution.started: a snippet began running in a session
  - execution.finished: a snippet finished, successfully or not
  - security.forbidden_api: static analysis rejected a forbidden identifier
  - security.blocked_module: an import/using referenced a blocked module
  - security.limit_breached: a timeout or memory ceiling was hit
  - package.resolved: a NuGet package was resolved to local artifacts
  - sessions.swept: the background sweep evicted a batch of idle sessions

# Basic Usage

Publishing events:

	event.Publish(event.Event{
		Type: event.SessionCreated,
		Data: event.SessionCreatedData{SessionID: id},
	})

	event.PublishSync(event.Event{
		Type: event.ExecutionFinished,
		Data: event.ExecutionFinishedData{SessionID: id, Success: true},
	})

Subscribing to specific events:

	unsubscribe := event.Subscribe(event.SessionCreated, func(e event.Event) {
		data := e.Data.(event.SessionCreatedData)
		logging.Info().Str("session", data.SessionID).Msg("session created")
	})
	defer unsubscribe()

Subscribing to all events:

	unsubscribe := event.SubscribeAll(func(e event.Event) {
		logging.Debug().Str("type", string(e.Type)).Msg("event")
	})
	defer unsubscribe()

# Subscriber Safety Guidelines

When using PublishSync, subscribers are called synchronously in the
publisher's goroutine. To avoid blocking or deadlocks, subscribers MUST:

  - Complete quickly (avoid long-running operations)
  - Use non-blocking channel sends (select with default case)
  - Never call Publish/PublishSync from within a subscriber (no re-entrant publishing)
  - Never acquire locks that the publisher might hold

# Custom Event Bus

For testing or isolation, create custom bus instances:

	bus := event.NewBus()
	defer bus.Close()

	unsubscribe := bus.Subscribe(event.SessionCreated, handler)
	bus.PublishSync(event.Event{Type: event.SessionCreated, Data: data})

# Testing

	// Reset global bus state (use in test cleanup)
	event.Reset()

# Thread Safety

The event bus is thread-safe and can be used concurrently from multiple
goroutines. Both publishing and subscribing are protected by internal
synchronization.

# Integration with Watermill

The package uses watermill's gochannel internally, exposing the underlying
pubsub for advanced use cases:

	pubsub := event.PubSub()
	// Use watermill features like middleware, routing, etc.

This allows future migration to a distributed broker without changing the
public API.
*/
package event
