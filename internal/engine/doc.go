// Package engine implements the script host.
//
// An Engine owns exactly one host program and the entity scripts attached
// to it. Script evaluation is delegated to an interp.Interpreter; the engine
// supplies the concurrency, identity and lifecycle discipline around it.
//
// ARCHITECTURE:
//
// Single Owning Goroutine:
// All script state lives on one goroutine. Requests from other goroutines
// are queued onto it (dispatch.go): calls with results block until the
// owner has run them, the rest return at once. Nothing inside an engine
// runs in parallel with anything else in the same engine; separate engines
// are independent.
//
// Frame Loop:
//  1. Sleep until the next frame boundary (start + n * period)
//  2. Run queued cross-goroutine work, timer expiries and upstream events
//  3. Flush the outbound queue
//  4. Publish Update with the elapsed time
//  5. Report uncaught exceptions raised during the frame
//
// On Stop the loop exits and runs the shutdown sequence: cancel timers,
// publish ScriptEnding, flush the outbound queue, publish Finished, clear
// running, publish RunningStateChanged and DoneRunning.
//
// CRITICAL PATTERNS:
//
// Environment Stack:
// Code always runs as some Environment (entity ID + trust origin).
// Timers, event handlers and notification subscriptions capture the
// environment installed when they were created and run under it, whatever
// is executing when they fire. withEnvironment restores the previous
// environment on every exit.
//
// Containment:
// Script failures (syntax errors, uncaught exceptions, bad constructors,
// rejected includes) are logged and contained. The only forced path is
// the shutdown timeout in WaitTillDoneRunning, which interrupts the
// interpreter.
package engine
