// Package entities is an in-memory upstream source of entity events.
//
// A Hub tracks which entities exist and which script each carries, and
// fans entity events out to subscribed script hosts. Subscribers receive
// events on the goroutine that emitted them.
package entities
