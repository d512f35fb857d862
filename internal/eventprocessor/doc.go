// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

/*
Package eventprocessor carries recorded feedback from the request path to the
asynchronous profile updater.

The bus is an in-process Watermill GoChannel pub/sub with a message.Router in
front of the consumer. RecordFeedback appends the event to the feedback log
synchronously, then publishes a FeedbackRecorded message; the router handler
applies it to the user's profile vector.

# Middleware

Middleware on the feedback handler, outermost first:

 1. PoisonQueue: messages that still fail after retries go to PoisonTopic
 2. Deduplicator: event ids seen within DedupTTL are acked and dropped
 3. Throttle: optional, ThrottlePerSecond > 0
 4. Retry: exponential backoff
 5. Recoverer: handler panics become errors

A consumer on PoisonTopic logs every dropped event.

# Lifecycle

Bus implements suture.Service. Each Serve call builds a fresh router over the
shared pub/sub, so a supervisor restart resumes consumption. While the router
is not running PublishFeedback returns ErrNotRunning and callers apply the
update inline.

	bus, err := eventprocessor.New(eventprocessor.DefaultConfig(), service, logger)
	if err != nil {
	    return err
	}
	service.SetPublisher(bus)
	supervisor.Add(bus)
*/
package eventprocessor
