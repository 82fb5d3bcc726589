/*
Package ports defines the driven ports (interfaces) for the Winnow service.

These interfaces decouple the core logic from external implementations,
allowing the orchestrator and the convergence machine to work with various
storage backends and reasoning services.

# Key Interfaces

  - ProjectStore: Persists project documents with path-scoped partial writes and change fan-out.
  - Reasoner: The external free-text reasoning service.
*/
package ports
