/*
Package app runs declarative configurations.

A Manager turns an appconfig.Config into live objects and services, wires their signals and
slots directly or through named proxy channels, and drives their lifecycle:

	destroyed -> created -> started -> stopped -> destroyed

Objects declared with src: deferred do not exist when the configuration is created. Services
that need them are postponed until a running service publishes the object as an output; the
manager then creates, starts and updates them in the declared order. When the object goes
away again, services that required it are stopped and destroyed, services for which it was
optional are told through swap_key.

Collaborators that other implementations keep as process-wide singletons (proxy, workers,
service registry, factories) live in a Context passed to every Manager.
*/
package app
