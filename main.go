package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/heitortanoue/fractalworker/internal/config"
	"github.com/heitortanoue/fractalworker/logging"
	"github.com/heitortanoue/fractalworker/pkg/fleet"
	"github.com/heitortanoue/fractalworker/pkg/network"
	"github.com/heitortanoue/fractalworker/pkg/protocol"
	"github.com/heitortanoue/fractalworker/pkg/shell"
	"github.com/heitortanoue/fractalworker/pkg/worker"
)

var startTime = time.Now() // For uptime calculation

func main() {
	defaults := config.DefaultConfig()

	// Command line flags
	var (
		configPath  = flag.String("config", "", "Path to a YAML configuration file")
		connect     = flag.String("connect", "", "Distributor address <ip>:<port>; skips the interactive shell")
		workerName  = flag.String("name", defaults.WorkerName, "Worker name sent in the fragment request")
		workload    = flag.Uint("workload", uint(defaults.MaxWorkLoad), "Maximal work load sent in the fragment request")
		dialTimeout = flag.Duration("dial-timeout", defaults.DialTimeout, "Connect timeout (0 = none)")
		ioTimeout   = flag.Duration("io-timeout", defaults.IOTimeout, "Per read/write timeout (0 = none)")
		maxFrame    = flag.Uint("max-frame-size", uint(defaults.MaxFrameSize), "Largest frame accepted from the distributor in bytes (0 = no limit)")
		statusPort  = flag.Int("status-port", defaults.StatusPort, "HTTP status port (0 = disabled)")
		fleetOn     = flag.Bool("fleet", defaults.Fleet.Enabled, "Enable SWIM fleet membership")
		fleetBind   = flag.String("fleet-bind", defaults.Fleet.BindAddr, "Fleet bind address")
		fleetPort   = flag.Int("fleet-port", defaults.Fleet.BindPort, "Fleet SWIM port")
		join        = flag.String("join", "", "Comma separated fleet seeds host:port")
		showUsage   = flag.Bool("help", false, "Show usage help")
	)
	flag.Parse()

	if *showUsage {
		printUsage()
		return
	}

	cfg := defaults
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("[MAIN] %v", err)
		}
		cfg = loaded
	}

	// Flags override file values only when given explicitly
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "connect":
			cfg.ServerAddr = *connect
		case "name":
			cfg.WorkerName = *workerName
		case "workload":
			if *workload > math.MaxUint32 {
				log.Fatalf("[MAIN] -workload must fit in 32 bits, got %d", *workload)
			}
			cfg.MaxWorkLoad = uint32(*workload)
		case "dial-timeout":
			cfg.DialTimeout = *dialTimeout
		case "io-timeout":
			cfg.IOTimeout = *ioTimeout
		case "max-frame-size":
			if *maxFrame > math.MaxUint32 {
				log.Fatalf("[MAIN] -max-frame-size must fit in 32 bits, got %d", *maxFrame)
			}
			cfg.MaxFrameSize = uint32(*maxFrame)
		case "status-port":
			cfg.StatusPort = *statusPort
		case "fleet":
			cfg.Fleet.Enabled = *fleetOn
		case "fleet-bind":
			cfg.Fleet.BindAddr = *fleetBind
		case "fleet-port":
			cfg.Fleet.BindPort = *fleetPort
		case "join":
			for _, seed := range strings.Split(*join, ",") {
				if seed = strings.TrimSpace(seed); seed != "" {
					cfg.Fleet.Seeds = append(cfg.Fleet.Seeds, seed)
				}
			}
		}
	})

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("[MAIN] invalid configuration: %v", err)
	}

	sess := &session{cfg: cfg}

	// Fleet membership
	if cfg.Fleet.Enabled {
		membership, err := fleet.NewMembershipManager(fleet.MembershipConfig{
			WorkerName: cfg.WorkerName,
			Workload:   cfg.MaxWorkLoad,
			BindAddr:   cfg.Fleet.BindAddr,
			BindPort:   cfg.Fleet.BindPort,
			Seeds:      cfg.Fleet.Seeds,
		})
		if err != nil {
			log.Fatalf("[MAIN] Error starting fleet membership: %v", err)
		}
		sess.membership = membership
		fmt.Printf("Fleet: node %s at %s\n", membership.GetNodeName(), membership.GetLocalAddr())
	}

	// Status server
	var statusServer *network.StatusServer
	if cfg.StatusPort > 0 {
		statusServer = network.NewStatusServer(cfg.WorkerName, cfg.StatusPort)
		statusServer.StatsHandler = network.JSONHandler(sess.statusStats)
		if sess.membership != nil {
			statusServer.FleetHandler = network.JSONHandler(sess.membership.GetStats)
		}

		go func() {
			if err := statusServer.Start(); err != nil && err != http.ErrServerClosed {
				log.Printf("[MAIN] Error starting status server: %v", err)
			}
		}()
		fmt.Printf("Status: http://localhost:%d/stats\n", cfg.StatusPort)
	}

	var shutdownOnce sync.Once
	shutdown := func() {
		shutdownOnce.Do(func() {
			if statusServer != nil {
				if err := statusServer.Stop(); err != nil {
					fmt.Printf("Error stopping status server: %v\n", err)
				}
			}
			if sess.membership != nil {
				if err := sess.membership.Leave(); err != nil {
					fmt.Printf("Error leaving fleet: %v\n", err)
				}
				sess.membership.Shutdown()
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown: the first signal stops a worker that has not connected
	// yet, a connected one runs until its session ends; a second signal exits
	// immediately
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutdown signal received, stopping...")
		cancel()
		if !sess.stop() {
			shutdown()
			os.Exit(0)
		}
		fmt.Println("Worker session in progress; press Ctrl-C again to exit now")

		<-sigCh
		fmt.Println("Forced exit")
		shutdown()
		os.Exit(1)
	}()

	if cfg.ServerAddr != "" {
		req, err := protocol.NewFragmentRequestBuilder().
			WithWorkerName(cfg.WorkerName).
			WithMaxWorkLoad(cfg.MaxWorkLoad).
			Build()
		if err != nil {
			log.Fatalf("[MAIN] %v", err)
		}

		fmt.Printf("=== Worker %s ===\n", cfg.WorkerName)
		fmt.Printf("Distributor: %s\n", cfg.ServerAddr)
		fmt.Printf("Max work load: %d\n", cfg.MaxWorkLoad)
		fmt.Printf("Starting...\n\n")

		err = sess.connect(ctx, cfg.ServerAddr, req)
		shutdown()
		if err != nil {
			log.Printf("[MAIN] Worker stopped: %v", err)
			os.Exit(1)
		}
		return
	}

	sh := shell.NewShell(os.Stdin, os.Stdout, sess.connect)
	sh.StatusProvider = sess.stats
	if sess.membership != nil {
		sh.FleetProvider = sess.membership.Members
	}

	if err := sh.Run(ctx); err != nil {
		log.Printf("[MAIN] Shell error: %v", err)
	}
	shutdown()
}

// session owns the worker currently driven by the shell or the -connect mode
type session struct {
	cfg        *config.WorkerConfig
	membership *fleet.MembershipManager

	mutex   sync.Mutex
	current *worker.Worker
	running bool
}

// connect runs one worker against addr and blocks until it stops
func (s *session) connect(ctx context.Context, addr string, req protocol.FragmentRequest) error {
	opts := protocol.Options{
		DialTimeout:  s.cfg.DialTimeout,
		IOTimeout:    s.cfg.IOTimeout,
		MaxFrameSize: s.cfg.MaxFrameSize,
	}
	w := worker.NewWorker(addr, opts, logging.NewWorkerLogger(req.WorkerName, nil))
	if s.membership != nil {
		w.StateHandler = func(state worker.State) {
			s.membership.PublishState(state.String())
		}
	}

	s.mutex.Lock()
	s.current = w
	s.running = true
	s.mutex.Unlock()

	defer func() {
		s.mutex.Lock()
		s.running = false
		s.mutex.Unlock()
	}()

	return w.Run(ctx, req)
}

// stop asks the running worker to stop and reports whether one was running
func (s *session) stop() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.current == nil || !s.running {
		return false
	}
	s.current.Stop()
	return true
}

// stats returns the statistics of the current or last worker, nil if none ran
func (s *session) stats() map[string]interface{} {
	s.mutex.Lock()
	w := s.current
	s.mutex.Unlock()

	if w == nil {
		return nil
	}
	return w.GetStats()
}

// statusStats is served on GET /stats
func (s *session) statusStats() map[string]interface{} {
	response := map[string]interface{}{
		"worker_name": s.cfg.WorkerName,
		"uptime":      time.Since(startTime).Seconds(),
	}
	if stats := s.stats(); stats != nil {
		response["worker"] = stats
	} else {
		response["worker"] = map[string]interface{}{"state": "Idle"}
	}
	return response
}

// printUsage shows available options and endpoints
func printUsage() {
	fmt.Fprintf(os.Stderr, `
=== Fractal Worker ===

USAGE:
  %s [options]

EXAMPLES:
  %s                                    (interactive shell)
  %s -connect=127.0.0.1:8787 -name=w1 -workload=500
  %s -config=worker.yaml -status-port=9090
  %s -connect=localhost:8787 -fleet -join=10.0.0.2:7946

OPTIONS:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])

	flag.PrintDefaults()

	fmt.Fprintf(os.Stderr, `
SHELL COMMANDS:
  worker --help              Show the command list
  worker connect <ip:port>   Connect to a distributor
  worker status              Statistics of the last worker
  worker fleet               Fleet members
  exit                       Quit

ENDPOINTS (status port):
  GET /health   - Health check
  GET /stats    - Worker statistics
  GET /fleet    - Fleet membership (with -fleet)
`)
}
