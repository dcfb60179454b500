// Command cartlink talks to a SummerCart64 from the PC side of the USB
// bridge. It can also run a simulated cart for testing without hardware.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ardnew/cartbridge/link"
	"github.com/ardnew/cartbridge/pkg"
	"github.com/ardnew/cartbridge/pkg/usbid"
)

// Component identifier for cartlink logging.
const componentCLI pkg.Component = "cartlink"

var (
	verbose = flag.Bool("v", false, "Enable verbose logging")
	jsonOut = flag.Bool("json", false, "Output logs as JSON")
)

// tcpPrefix selects a network connection instead of a serial port, for
// talking to `cartlink sim`.
const tcpPrefix = "tcp:"

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{"list", "list USB serial ports and mark carts", runList},
	{"send", "send one message to the console", runSend},
	{"recv", "print messages from the console", runRecv},
	{"console", "interactive text console", runConsole},
	{"bench", "measure command round-trip latency", runBench},
	{"sim", "serve a simulated cart over TCP", runSim},
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: %s [-v] [-json] <command> [flags]\n\ncommands:\n", os.Args[0])
	for _, c := range commands {
		fmt.Fprintf(out, "  %-8s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(out)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	// Set up logging based on flags
	if *verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	} else {
		pkg.SetLogLevel(slog.LevelInfo)
	}
	if *jsonOut {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name, args := flag.Arg(0), flag.Args()[1:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		err := c.run(ctx, args)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, flag.ErrHelp) {
			pkg.LogError(componentCLI, name+" failed", "error", err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
	flag.Usage()
	os.Exit(2)
}

// connectFlags registers the flags shared by commands that open a link.
type connectFlags struct {
	port    *string
	timeout *time.Duration
}

func addConnectFlags(fs *flag.FlagSet) connectFlags {
	return connectFlags{
		port:    fs.String("port", "", "Serial port, or tcp:host:port for a simulated cart (default: first cart found)"),
		timeout: fs.Duration("timeout", 5*time.Second, "Per-command timeout"),
	}
}

// open connects to the selected cart.
func (f connectFlags) open() (*link.Link, error) {
	port := *f.port
	if addr, ok := strings.CutPrefix(port, tcpPrefix); ok {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		pkg.LogInfo(componentCLI, "connected", "addr", addr)
		return link.New(conn), nil
	}

	if port == "" {
		p, err := link.FindCart(usbid.New())
		if err != nil {
			return nil, fmt.Errorf("find cart: %w", err)
		}
		pkg.LogInfo(componentCLI, "cart found", "port", p.String())
		port = p.Name
	}
	return link.Open(port)
}

// openIdentified connects and checks the cart answers the identify command.
func (f connectFlags) openIdentified(ctx context.Context) (*link.Link, error) {
	l, err := f.open()
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, *f.timeout)
	defer cancel()
	id, err := l.Identify(cctx)
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("identify: %w", err)
	}
	pkg.LogDebug(componentCLI, "cart identified", "identifier", fmt.Sprintf("0x%08X", id))
	return l, nil
}
