/*
Package observability provides ready-made lifecycle hooks for the concierge.

LogHooks writes every transition, send and job event to a structured logger.
Combine it with other hooks (for example the Prometheus hooks) using
domain.Hooks.Merge.
*/
package observability
