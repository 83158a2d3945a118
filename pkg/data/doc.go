// Package data holds the data objects services operate on.
//
// Every object exposes named signals (at least "modified") and carries a classname such as
// "sight::data::integer". Objects are built by a Factory from their classname and filled from
// configuration by a Parser.
package data
