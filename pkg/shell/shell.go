// Package shell implements the interactive "fract >> " prompt used to start
// workers by hand.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/heitortanoue/fractalworker/pkg/fleet"
	"github.com/heitortanoue/fractalworker/pkg/protocol"
)

// Prompt is printed before every command
const Prompt = "fract >> "

// ConnectFunc runs one worker session against addr and blocks until it ends
type ConnectFunc func(ctx context.Context, addr string, req protocol.FragmentRequest) error

// Shell reads commands from in and writes everything to out
type Shell struct {
	scanner *bufio.Scanner
	out     io.Writer
	connect ConnectFunc

	// StatusProvider returns the statistics of the last worker, nil before the first run
	StatusProvider func() map[string]interface{}
	// FleetProvider lists fleet members; nil when membership is disabled
	FleetProvider func() []fleet.Member
}

// NewShell creates a shell; connect is called for "worker connect"
func NewShell(in io.Reader, out io.Writer, connect ConnectFunc) *Shell {
	return &Shell{
		scanner: bufio.NewScanner(in),
		out:     out,
		connect: connect,
	}
}

// Run prompts and executes commands until "exit", end of input or ctx is done
func (s *Shell) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, ok := s.readLine(Prompt)
		if !ok {
			return s.scanner.Err()
		}

		if quit := s.Execute(ctx, line); quit {
			return nil
		}
	}
}

// Execute runs a single command line and reports whether the shell should exit
func (s *Shell) Execute(ctx context.Context, line string) bool {
	cmd := strings.TrimSpace(line)

	switch {
	case cmd == "":
	case cmd == "exit":
		return true
	case cmd == "worker --help":
		s.printHelp()
	case cmd == "worker status":
		s.printStatus()
	case cmd == "worker fleet":
		s.printFleet()
	case strings.HasPrefix(cmd, "worker connect "):
		s.handleConnect(ctx, strings.TrimSpace(strings.TrimPrefix(cmd, "worker connect ")))
	default:
		fmt.Fprintln(s.out, "Unrecognized command. Try `worker --help` for a list of commands.")
	}
	return false
}

func (s *Shell) handleConnect(ctx context.Context, target string) {
	parts := strings.Split(target, ":")
	if len(parts) != 2 {
		fmt.Fprintln(s.out, "Invalid format. Use: worker connect <ip>:<port>")
		return
	}

	ip, port := parts[0], parts[1]
	if !validHost(ip) {
		fmt.Fprintln(s.out, "Invalid IP address.")
		return
	}
	if p, err := strconv.ParseUint(port, 10, 16); err != nil || p == 0 {
		fmt.Fprintln(s.out, "Invalid port.")
		return
	}

	name, ok := s.readLine("Enter connection name: ")
	if !ok {
		return
	}
	workloadText, ok := s.readLine("Enter max workload: ")
	if !ok {
		return
	}

	workload, err := strconv.ParseUint(workloadText, 10, 32)
	if err != nil {
		fmt.Fprintln(s.out, "Invalid number for workload")
		return
	}

	req, err := protocol.NewFragmentRequestBuilder().
		WithWorkerName(name).
		WithMaxWorkLoad(uint32(workload)).
		Build()
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}

	addr := net.JoinHostPort(ip, port)
	if err := s.connect(ctx, addr, req); err != nil {
		fmt.Fprintf(s.out, "Worker stopped: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "Worker stopped.")
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, "\nAvailable Commands:")
	fmt.Fprintln(s.out, "  worker --help                 : Show this help menu")
	fmt.Fprintln(s.out, "  worker connect <ip:port>      : Connect to a fractal server")
	fmt.Fprintln(s.out, "  worker status                 : Show statistics of the last worker")
	fmt.Fprintln(s.out, "  worker fleet                  : List workers of the fleet")
	fmt.Fprintln(s.out, "  exit                          : Quit")
}

func (s *Shell) printStatus() {
	var stats map[string]interface{}
	if s.StatusProvider != nil {
		stats = s.StatusProvider()
	}
	if stats == nil {
		fmt.Fprintln(s.out, "No worker has run yet.")
		return
	}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(s.out, "  %-16s %v\n", k+":", stats[k])
	}
}

func (s *Shell) printFleet() {
	if s.FleetProvider == nil {
		fmt.Fprintln(s.out, "Fleet membership is disabled. Start with -fleet to enable it.")
		return
	}

	members := s.FleetProvider()
	fmt.Fprintf(s.out, "%d member(s):\n", len(members))
	for _, m := range members {
		fmt.Fprintf(s.out, "  %-24s %-21s name=%s workload=%d state=%s\n",
			m.NodeName, m.Addr, m.Meta.WorkerName, m.Meta.Workload, m.Meta.State)
	}
}

func (s *Shell) readLine(prompt string) (string, bool) {
	fmt.Fprint(s.out, prompt)
	if !s.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.scanner.Text()), true
}

// validHost accepts "localhost" or a dotted IPv4 address
func validHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() != nil && ip.String() == host
}
