// Package appconfig models application configurations.
//
// A configuration is an ordered list of entries: objects, services (possibly grouped in
// service lists), channel connections, and start/update directives. It is written in YAML
// (or JSON) under a top-level "config" key:
//
//	config:
//	  - object: {uid: image, type: sight::data::integer, value: 3}
//	  - object: {uid: mesh, type: sight::data::string, src: deferred}
//	  - service:
//	      uid: printer
//	      type: sight::service::printer
//	      in: [{key: source, uid: image, auto_connect: true}]
//	  - connect: {signal: [image/modified], slot: [printer/update]}
//	  - start: {uid: printer}
//
// String values may reference template fields as ${name}; Parse substitutes them.
package appconfig
