// Package interactive provides the interactive command-line interface
// for vtprobe.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/vtprobe/vtprobe-go/pkg/inspect"
	"github.com/vtprobe/vtprobe-go/pkg/report"
	"github.com/vtprobe/vtprobe-go/pkg/session"
	"github.com/vtprobe/vtprobe-go/pkg/tag"
	"github.com/vtprobe/vtprobe-go/pkg/worker"
)

// DefaultSettleTimeout bounds how long open waits for the preview to start
// and how long a result read waits for its frame.
const DefaultSettleTimeout = 3 * time.Second

// ErrInvalidConfig is returned by New when a required collaborator is missing.
var ErrInvalidConfig = errors.New("invalid shell config")

// Simulator injects device faults. It is implemented by sim.Manager.
type Simulator interface {
	Disconnect(id string) bool
	Fail(id string, code int) bool
}

// Config configures a Shell.
type Config struct {
	Session   *session.Manager
	Worker    *worker.Worker
	Inspector *inspect.Inspector
	Reporter  *report.Reporter

	// Simulator enables the sim command. Optional.
	Simulator Simulator

	// DeviceID, Spec and Value are the initial selections.
	DeviceID string
	Spec     tag.TagSpec
	Value    string

	// SettleTimeout defaults to DefaultSettleTimeout.
	SettleTimeout time.Duration

	// Out receives command output outside the report. Defaults to os.Stdout.
	Out io.Writer
}

// Shell handles interactive mode for vtprobe.
type Shell struct {
	session   *session.Manager
	worker    *worker.Worker
	inspector *inspect.Inspector
	reporter  *report.Reporter
	sim       Simulator
	settle    time.Duration
	out       io.Writer

	deviceID string
	spec     tag.TagSpec
	value    string
}

// New creates a new interactive shell.
func New(cfg Config) (*Shell, error) {
	if cfg.Session == nil || cfg.Worker == nil || cfg.Inspector == nil || cfg.Reporter == nil {
		return nil, fmt.Errorf("%w: Session, Worker, Inspector and Reporter are required", ErrInvalidConfig)
	}

	s := &Shell{
		session:   cfg.Session,
		worker:    cfg.Worker,
		inspector: cfg.Inspector,
		reporter:  cfg.Reporter,
		sim:       cfg.Simulator,
		settle:    cfg.SettleTimeout,
		out:       cfg.Out,
		deviceID:  cfg.DeviceID,
		spec:      cfg.Spec,
		value:     cfg.Value,
	}
	if s.settle <= 0 {
		s.settle = DefaultSettleTimeout
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.deviceID == "" {
		s.deviceID = session.DefaultDeviceID
	}
	if s.spec.Name == "" {
		s.spec = tag.TagSpec{Name: tag.DefaultName, Type: tag.Byte, Cardinality: tag.Single}
	}
	return s, nil
}

// Run starts the interactive command loop. It returns when the operator
// quits or ctx is done, after closing the device and stopping the worker.
func (s *Shell) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "vtprobe> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    s.completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	// Asynchronous report lines must not tear the prompt.
	s.out = rl.Stdout()
	s.reporter.SetOutput(rl.Stdout())
	defer s.shutdown()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			return nil
		}

		if !s.Exec(ctx, line) {
			fmt.Fprintln(s.out, "Exiting...")
			return nil
		}
	}
}

// Exec runs one command line. It returns false when the operator asked to
// quit.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "open", "o":
		s.cmdOpen(ctx, args)

	case "close", "c":
		s.cmdClose()

	case "read", "r":
		s.cmdRead(ctx, args)

	case "write", "w":
		s.cmdWrite(args)

	case "set":
		s.cmdSet(args)

	case "dump", "d":
		_ = s.inspector.DumpAll()

	case "names", "n":
		s.cmdNames(args)

	case "vendor":
		s.cmdVendor()

	case "forget":
		s.inspector.Forget("")
		fmt.Fprintln(s.out, "Characteristics cache cleared.")

	case "sim":
		s.cmdSim(args)

	case "status", "s":
		s.cmdStatus()

	case "quit", "exit", "q":
		s.shutdown()
		return false

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
vtprobe Commands:
  Session:
    open [device]            - Start the worker, open the device and start preview
    close                    - Close the device and stop the worker
    status                   - Show session and selection state

  Registries:
    read chars [target]      - Read the tag from the static characteristics
    read result [target]     - Capture one frame and read the tag from its result
    read request [target]    - Read the tag from the pending request
    write [value]            - Write the value into the request and resubmit
    dump                     - Dump every characteristic of every device
    names [prefix]           - List characteristic names of the device
    vendor                   - List vendor tags of the device
    forget                   - Clear the characteristics cache

  Selection:
    set tag <target>         - Select tag, e.g. vendor.gain:int32[]
    set name|type|card <v>   - Change one part of the selected tag
    set value <text>         - Default value for write
    set device <id>          - Device for open and read chars

  Simulation:
    sim disconnect           - Disconnect the open device
    sim error <code>         - Fail the open device with an error code

  General:
    help                     - Show this help
    quit                     - Close everything and exit

  Target Format:
    name | name:type | name:type[] | name:type:cardinality
    types: byte, int32, int64, float`)
}

func (s *Shell) cmdOpen(ctx context.Context, args []string) {
	id := s.deviceID
	if len(args) > 0 {
		id = args[0]
	}

	if !s.worker.Running() {
		s.worker.Start()
	}
	if err := s.session.Open(ctx, id); err != nil {
		if errors.Is(err, session.ErrAlreadyOpen) {
			fmt.Fprintf(s.out, "Already open (%s).\n", s.session.State())
		}
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.settle)
	defer cancel()
	st, err := s.session.Wait(waitCtx, session.StateStreamActive, session.StateClosed)
	if err != nil {
		fmt.Fprintf(s.out, "State: %s\n", st)
	}
}

func (s *Shell) cmdClose() {
	if err := s.session.Close(); err != nil {
		fmt.Fprintf(s.out, "Close: %v\n", err)
	}
	s.worker.Stop()
}

// shutdown mirrors a host pause: close the device, then stop the worker.
func (s *Shell) shutdown() {
	if s.session.State() != session.StateClosed || s.worker.Running() {
		s.cmdClose()
	}
}

func (s *Shell) cmdRead(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: read chars|result|request [target]")
		return
	}
	kind, err := tag.ParseRegistryKind(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Invalid registry: %v\n", err)
		return
	}

	spec := s.spec
	if len(args) > 1 {
		spec, err = inspect.ParseTarget(args[1], s.spec)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid target: %v\n", err)
			return
		}
	}

	switch kind {
	case tag.StaticCapabilities:
		_, _ = s.inspector.ReadStatic(s.deviceID, spec)
	case tag.DynamicResult:
		readCtx, cancel := context.WithTimeout(ctx, s.settle)
		defer cancel()
		_, _ = s.inspector.ReadResult(readCtx, spec)
	case tag.MutableRequest:
		_, _ = s.inspector.ReadRequest(spec)
	}
}

func (s *Shell) cmdWrite(args []string) {
	text := s.value
	if len(args) > 0 {
		text = strings.Join(args, " ")
	}
	_, _ = s.inspector.ApplyTag(s.spec, text)
}

func (s *Shell) cmdSet(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: set tag|name|type|card|value|device <value>")
		return
	}
	what, rest := strings.ToLower(args[0]), strings.Join(args[1:], " ")

	switch what {
	case "tag", "target":
		spec, err := inspect.ParseTarget(rest, s.spec)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid target: %v\n", err)
			return
		}
		s.spec = spec

	case "name":
		spec, err := tag.NewTagSpec(rest, s.spec.Type, s.spec.Cardinality)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid name: %v\n", err)
			return
		}
		s.spec = spec

	case "type":
		t, err := tag.ParseValueType(rest)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid type: %v\n", err)
			return
		}
		s.spec.Type = t

	case "card", "cardinality":
		c, err := tag.ParseCardinality(rest)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid cardinality: %v\n", err)
			return
		}
		s.spec.Cardinality = c

	case "value":
		s.value = rest

	case "device":
		s.deviceID = args[1]

	default:
		fmt.Fprintf(s.out, "Unknown setting: %s\n", what)
		return
	}
	fmt.Fprintf(s.out, "Tag: %s  Value: %q  Device: %s\n", s.spec, s.value, s.deviceID)
}

func (s *Shell) cmdNames(args []string) {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	names := s.inspector.TagNames(s.deviceID, prefix)
	if len(names) == 0 {
		fmt.Fprintln(s.out, "No matching names.")
		return
	}
	for _, n := range names {
		fmt.Fprintf(s.out, "  %s\n", n)
	}
}

func (s *Shell) cmdVendor() {
	md, err := s.inspector.Characteristics(s.deviceID)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	names := inspect.VendorNames(md.Entries())
	if len(names) == 0 {
		fmt.Fprintln(s.out, "No vendor tags.")
		return
	}
	for _, n := range names {
		fmt.Fprintf(s.out, "  %s\n", n)
	}
}

func (s *Shell) cmdSim(args []string) {
	if s.sim == nil {
		fmt.Fprintln(s.out, "Simulation not available.")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: sim disconnect | sim error <code>")
		return
	}

	id := s.session.DeviceID()
	if id == "" {
		fmt.Fprintln(s.out, "No open device.")
		return
	}

	var ok bool
	switch strings.ToLower(args[0]) {
	case "disconnect":
		ok = s.sim.Disconnect(id)
	case "error":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: sim error <code>")
			return
		}
		code, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(s.out, "Invalid code: %v\n", err)
			return
		}
		ok = s.sim.Fail(id, code)
	default:
		fmt.Fprintf(s.out, "Unknown sim command: %s\n", args[0])
		return
	}
	if !ok {
		fmt.Fprintf(s.out, "Device %s is not active.\n", id)
	}
}

func (s *Shell) cmdStatus() {
	fmt.Fprintf(s.out, "State:      %s\n", s.session.State())
	if id := s.session.DeviceID(); id != "" {
		fmt.Fprintf(s.out, "Open:       %s (generation %d)\n", id, s.session.Generation())
	}
	fmt.Fprintf(s.out, "Device:     %s\n", s.deviceID)
	fmt.Fprintf(s.out, "Tag:        %s\n", s.spec)
	fmt.Fprintf(s.out, "Value:      %q\n", s.value)
	fmt.Fprintf(s.out, "Worker:     running=%t pending=%d processed=%d\n",
		s.worker.Running(), s.worker.Pending(), s.worker.Processed())
	fmt.Fprintf(s.out, "Cached:     %d device(s)\n", s.inspector.Cached())
	fmt.Fprintf(s.out, "Trace ID:   %s\n", s.session.TraceID())
}

// completer completes commands, registries and characteristic names of
// the selected device.
func (s *Shell) completer() *readline.PrefixCompleter {
	names := readline.PcItemDynamic(func(string) []string {
		return s.inspector.TagNames(s.deviceID, "")
	})
	types := make([]readline.PrefixCompleterInterface, 0, len(tag.ValueTypes))
	for _, t := range tag.ValueTypes {
		types = append(types, readline.PcItem(strings.ToLower(t.String())))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("open"),
		readline.PcItem("close"),
		readline.PcItem("read",
			readline.PcItem("chars", names),
			readline.PcItem("result", names),
			readline.PcItem("request", names),
		),
		readline.PcItem("write"),
		readline.PcItem("set",
			readline.PcItem("tag", names),
			readline.PcItem("name", names),
			readline.PcItem("type", types...),
			readline.PcItem("card",
				readline.PcItem("single"),
				readline.PcItem("array"),
			),
			readline.PcItem("value"),
			readline.PcItem("device"),
		),
		readline.PcItem("dump"),
		readline.PcItem("names"),
		readline.PcItem("vendor"),
		readline.PcItem("forget"),
		readline.PcItem("sim",
			readline.PcItem("disconnect"),
			readline.PcItem("error"),
		),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}
