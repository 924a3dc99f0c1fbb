// Package session manages the lifecycle of the probed camera device.
//
// A Manager drives one device through the states
//
//	CLOSED -> OPENING -> OPEN -> CONFIGURING_STREAM -> STREAM_ACTIVE
//
// and back to CLOSED through CLOSING, a device error or a disconnect. The
// transition table is exposed as the pure function Transition.
//
// # Open/close lock
//
// Open and Close share a one-slot lock. Open waits for it at most
// Config.OpenTimeout and keeps it until the opened, error or disconnected
// callback of its own attempt arrives. Close waits for it without a bound,
// so an in-flight open completes before the device is torn down.
//
// # Generations
//
// Every open attempt gets a new generation number, and Close advances it
// again. HAL callbacks carry the generation of the attempt that registered
// them; a callback from an older generation changes nothing and any handle
// it delivers is closed.
//
// # Threading
//
// HAL callbacks run on Config.Executor, normally a worker.Worker. Operator
// methods may be called from any other goroutine. CaptureOnce and
// ReadResult block on a callback and must never run on the executor.
package session
