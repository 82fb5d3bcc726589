/*
Package domain contains the core domain models for the Winnow service.

It defines the project aggregate, the convergence session with its stages and
idea bank, the focus context handed to prompt builders, and the error taxonomy.
This package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - ProjectState: The aggregate root owning all feature sub-states for one learner project.
  - ConvergenceSession: The multi-stage narrowing session (Reflect → Locked).
  - IdeaBank: The bounded, deduplicated set of favorited candidate phrasings.
  - FocusContext: A per-request, read-only merge of project data and inline payload.
*/
package domain
