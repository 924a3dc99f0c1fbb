// Package sim provides an in-memory implementation of the hal contract,
// driven by a YAML device profile.
//
// It backs the vtprobe CLI when no hardware is attached and serves as the
// HAL in tests. A profile lists devices with their characteristics, result
// entries and request tag definitions:
//
//	devices:
//	  - id: "0"
//	    characteristics:
//	      - name: com.vendor.source.available
//	        type: byte
//	        array: true
//	        value: [0, 1]
//	    request:
//	      - name: com.vendor.source.input
//	        type: byte
//	        value: 0
//	    open_error: 0
//	    configure_fail: false
//
// Stores enforce the registry rules: a typed name answers only under its
// own shape (hal.ErrTypeMismatch otherwise), hidden entries return
// hal.ErrNotExposed, unknown names are absent. Request builders accept new
// names but refuse to change the shape of a defined one.
//
// Capture results echo every typed value of the submitted request on top of
// the device's result entries.
package sim
