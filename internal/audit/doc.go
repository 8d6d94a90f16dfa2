// Package audit ships finished invocations through a queue into the
// invocation repository. The dispatcher side is a Recorder observer; the
// storage side is a Processor consuming the queue.
package audit
