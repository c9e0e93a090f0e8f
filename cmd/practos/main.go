package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/practos/practos/internal/cli"
	"github.com/practos/practos/internal/config"
	"github.com/practos/practos/internal/console"
	"github.com/practos/practos/internal/debug/gdbserver"
	"github.com/practos/practos/internal/device/sim"
	"github.com/practos/practos/internal/kernel"
	"github.com/practos/practos/internal/machine"
	"github.com/practos/practos/internal/monitor"
	"github.com/practos/practos/internal/trace"
)

const toolName = "practos"

func main() {
	var (
		showVersion bool
		jsonOutput  bool
		configFile  string
		initConfig  bool
	)

	flag.BoolVar(&showVersion, "version", false, "show version information")
	flag.BoolVar(&jsonOutput, "json", false, "output in JSON format")
	flag.StringVar(&configFile, "config", "practos.json", "configuration file path")
	flag.BoolVar(&initConfig, "init-config", false, "write the default configuration and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Boots the practos kernel on the simulated board with the demo programs.\n")
		fmt.Fprintf(os.Stderr, "Every key typed on the console starts a process.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		cli.PrintVersion(toolName, jsonOutput)
		return
	}

	if initConfig {
		if err := config.Default().Save(configFile); err != nil {
			cli.ExitWithError("Failed to initialize config: %v", err)
		}
		fmt.Printf("Configuration initialized: %s\n", configFile)
		return
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		cli.ExitWithError("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, configFile, jsonOutput); err != nil {
		cli.ExitWithError("%v", err)
	}
}

// run boots the demo and serves it until every thread exits, the kernel
// halts, the console detaches or ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, configFile string, jsonOutput bool) error {
	con, err := console.Open(cfg.Console, nil)
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}
	defer con.Close()

	log := cli.NewLogger(con.Output(), cfg.Level())
	m, initProg := newMachine(cfg, con.Output(), log)
	defer m.Close()

	var rec *trace.Recorder
	if cfg.TracePNG != "" {
		rec = trace.NewRecorder(0)
		m.Inspect(func(k *kernel.Kernel) { k.SetObserver(rec) })
	}
	if err := m.Boot(initProg, nil); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.GDBAddr != "" {
		ln, err := net.Listen("tcp", cfg.GDBAddr)
		if err != nil {
			return fmt.Errorf("gdb: %w", err)
		}
		srv := gdbserver.NewServer(m, log.With("gdb"))
		go func() {
			if err := srv.Serve(ctx, ln); err != nil {
				log.Warn("gdb stub stopped: %v", err)
			}
		}()
	}

	if cfg.StatusAddr != "" {
		srv, err := monitor.Start(m, monitor.Options{
			Addr:     cfg.StatusAddr,
			CertFile: cfg.StatusCert,
			KeyFile:  cfg.StatusKey,
			Log:      log.With("status"),
		})
		if err != nil {
			return err
		}
		defer srv.Stop()
	}

	if _, err := os.Stat(configFile); err == nil {
		go func() {
			err := config.Watch(ctx, configFile, func(c *config.Config) {
				if c.Level() != log.Level() {
					log.Info("log level %s", c.Level())
					log.SetLevel(c.Level())
				}
			}, func(err error) {
				log.Warn("config reload: %v", err)
			})
			if err != nil {
				log.Warn("config watch: %v", err)
			}
		}()
	}

	go func() {
		err := con.Run(ctx, m)
		m.CloseInput()
		switch {
		case errors.Is(err, console.ErrDetached):
			log.Info("console detached")
			cancel()
		case err != nil && ctx.Err() == nil:
			log.Warn("console: %v", err)
		}
	}()

	runErr := m.Run(ctx)

	if rec != nil {
		if err := rec.SavePNG(cfg.TracePNG, m.Clock().Now()); err != nil {
			log.Warn("trace: %v", err)
		} else {
			log.Info("timeline written to %s", cfg.TracePNG)
		}
	}
	if err := printSummary(con.Output(), summarize(m), jsonOutput); err != nil {
		return err
	}

	switch {
	case runErr == nil:
		log.Info("all threads exited")
		return nil
	case errors.Is(runErr, context.Canceled):
		return nil
	case errors.Is(runErr, machine.ErrStalled):
		log.Info("%v", runErr)
		return nil
	default:
		return runErr
	}
}

// newMachine builds the board for cfg with the demo programs loaded and
// returns it with the name of the init program.
func newMachine(cfg *config.Config, out io.Writer, log *cli.Logger) (*machine.Machine, string) {
	opts := machine.Options{
		Kernel: kernel.Config{
			Quantum:    cfg.QuantumMicros,
			IRQRegDump: cfg.IRQRegDump,
			FaultKeys:  cfg.FaultKeys,
		},
		Output:   out,
		RingSize: cfg.UARTBuffer,
		Globals:  machine.DemoGlobals(),
		Log:      log,
	}
	if cfg.Clock == config.ClockHost {
		opts.Clock = sim.NewHostClock()
	} else {
		// Simulated time stops while the demo waits for the console.
		opts.AwaitInput = true
	}
	m := machine.New(opts)
	return m, machine.LoadDemo(m)
}

// Summary is printed when the machine stops.
type Summary struct {
	Kernel  kernel.Stats     `json:"kernel"`
	Machine machine.Counters `json:"machine"`
	Halted  bool             `json:"halted"`
	Live    int              `json:"live_threads"`
}

func summarize(m *machine.Machine) Summary {
	var s Summary
	m.Inspect(func(k *kernel.Kernel) {
		snap := k.Snapshot()
		s = Summary{Kernel: snap.Stats, Halted: snap.Halted, Live: len(snap.Threads)}
	})
	s.Machine = m.Counters()
	return s
}

func printSummary(w io.Writer, s Summary, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	_, err := fmt.Fprintf(w, "\nthreads created %d, exited %d, live %d; %d switches, %d syscalls, %d IRQs, %d faults\n",
		s.Kernel.Created, s.Kernel.Exited, s.Live, s.Kernel.Switches, s.Kernel.Syscalls, s.Kernel.IRQs, s.Kernel.Faults)
	return err
}
