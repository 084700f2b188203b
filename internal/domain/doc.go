// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (checkbox.go, snapshot.go, errors.go, rate_limit.go) hold the shared
// types and cross-cutting interfaces. No implementation code beyond value helpers - just contracts.
// Interfaces live here so the store, backends and transport never import each other.
package domain
