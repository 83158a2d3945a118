/*
Package sight is a component framework core: data objects, services operating on them and a
declarative configuration wiring both together.

# Concept

Services expose named signals and slots. A configuration declares the objects, the services
bound to them, the channels routing signals to slots and the start/update directives. The
app.Manager builds everything, drives the service lifecycles on workers and follows objects
published later by other services ("deferred" objects): services waiting for such an object
are created and started when it appears, and stopped and destroyed when it goes away.

# Key Features

  - Typed signal/slot dispatch with argument truncation and counted connection blockers.
  - Worker goroutines and futures for asynchronous slot runs and service lifecycles.
  - Named channels (proxy) connecting every signal to every slot of a channel.
  - Deferred objects, optional bindings and live object swapping.
  - Pluggable configuration loaders and preference stores (memory, files, Redis).

# Usage

	package main

	import (
		"log"

		"github.com/aretw0/sight"
	)

	func main() {
		// Reads configurations from ./configs, ids are file names without extension
		launcher, err := sight.New("./configs")
		if err != nil {
			log.Fatal(err)
		}
		defer launcher.Close()

		m, err := launcher.Launch("viewer")
		if err != nil {
			log.Fatal(err)
		}
		defer m.StopAndDestroy()

		// ... wait for a shutdown signal
	}
*/
package sight
