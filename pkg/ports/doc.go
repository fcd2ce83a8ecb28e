/*
Package ports defines the driven ports (interfaces) of the booking concierge.

These interfaces decouple the core logic from external implementations, allowing
the engine and scheduler to work with various storage backends and messaging
providers.

# Key Interfaces

  - SessionStore: Responsible for persisting and loading Sessions.
  - DistributedLocker: Provides distributed locking for concurrent session access across replicas.
  - MessagingGateway: Transmits a SendRequest to the remote party.
  - Concierge: The driving surface used by transport adapters (HTTP, MCP, CLI).
*/
package ports
