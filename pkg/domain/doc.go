/*
Package domain contains the core domain models of the booking concierge.

It defines the entities the state machine and the scheduler operate on, such as
Sessions, Stages, inbound Signals and Scheduled Jobs. This package is kept pure
and free of external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - Session: per-address conversation state (Stage plus the selections made so far).
  - Stage: the step of the booking workflow a Session occupies.
  - Signal: one inbound message, classified into exactly one SignalKind.
  - Action: what the engine wants sent back to the remote party.
  - SendRequest: the provider-agnostic message handed to a Messaging Gateway.
  - Job: a one-shot deferred broadcast owned by the scheduler.
*/
package domain
