/*
Package observability turns the lifecycle hooks of the application manager and the channel
hooks of the proxy into Prometheus metrics.

Collectors are registered on the given registerer; pass prometheus.DefaultRegisterer to
expose them on the default /metrics handler.
*/
package observability
