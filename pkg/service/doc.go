// Package service defines the contract between services and the configuration manager.
//
// A service is created by a Factory from its type name, receives its configuration subtree,
// gets data objects bound under keys, and goes through Configure, Start, Update and Stop.
// Lifecycle requests run on the service's worker and return futures.
//
// Base implements the whole contract around an Implementation holding the service-specific
// callbacks; concrete services embed it.
package service
