// Command vtprobe is a diagnostic probe for camera HAL vendor tags.
//
// It reads a vendor tag, given by name, value type and cardinality, from
// the static characteristics of a device, from the result of a captured
// frame and from the pending capture request. It also writes tags into the
// request and resubmits the repeating preview.
//
// Usage:
//
//	vtprobe [command] [flags]
//
// Commands:
//
//	shell    Interactive shell (default)
//	dump     Dump every static characteristic of every device
//	read     Read the tag from one registry
//	write    Write the tag into the pending request
//	config   Show or create the configuration
//	log      Inspect recorded session traces
//
// Examples:
//
//	# Read a byte-array vendor tag from the characteristics of device 1
//	vtprobe read chars --device 1 --tag com.kdiwin.control.source.available_input_sources:byte[]
//
//	# Write a window into the preview request and record a trace
//	vtprobe write --tag com.kdiwin.control.source.window:int32[] --event-log probe.vtlog "0, 0, 640, 480"
//
//	# Show the state changes of the recorded session
//	vtprobe log view --category state probe.vtlog
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := Execute(ctx)
	stop()
	exitOnError(err)
}
