/*
Package ports defines the driven ports (interfaces) of the Sight application layer.

These interfaces decouple the configuration manager from external implementations, allowing
configurations and persisted preferences to live in memory, on disk or in Redis.

# Key Interfaces

  - ConfigLoader: Responsible for loading raw configuration documents by id.
  - PreferenceStore: Responsible for persisting the values of "preference" objects.
*/
package ports
