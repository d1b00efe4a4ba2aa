package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	duofern "github.com/amken3d/duofern-bridge/internal/duofern"
)

var (
	device  = flag.String("device", "/dev/ttyUSB0", "Serial device path for the DuoFern USB stick")
	dongle  = flag.String("dongle", "", "Dongle id, e.g. 6F1234")
	verbose = flag.Bool("verbose", false, "Enable debug-level logging")
)

func main() {
	flag.Parse()

	fmt.Println("duofernctl - DuoFern radio bridge")
	fmt.Println("==================================")

	log := mustLogger(*verbose)
	defer log.Sync()

	cfg := duofern.Config{Port: *device, DongleID: *dongle}
	bridge, err := duofern.New(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- bridge.Run(ctx) }()

	fmt.Printf("Connecting to %s...\n", *device)
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		cmd := parts[0]

		switch cmd {
		case "quit", "exit", "q":
			cancel()
			<-runDone
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "status":
			if err := sendStatusRequest(bridge, parts); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "up", "down", "stop", "toggle":
			if err := sendSimpleCommand(bridge, cmd, parts); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "position", "slatPosition":
			if err := sendPercentCommand(bridge, cmd, parts); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "automatic":
			if err := sendAutomaticCommand(bridge, parts); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
		}
	}

	cancel()
	<-runDone

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  status [device]             - Request status (broadcast if device omitted)")
	fmt.Println("  up|down|stop|toggle device  - Send a simple motion command")
	fmt.Println("  position device pct         - Move to a 0..100 percentage")
	fmt.Println("  slatPosition device pct     - Move slats to a 0..100 percentage")
	fmt.Println("  automatic name on|off device - Toggle a named automatic")
	fmt.Println("  quit/exit/q                 - Exit the program")
	fmt.Println()
}

func sendStatusRequest(b *duofern.Bridge, parts []string) error {
	dev := ""
	if len(parts) > 1 {
		dev = parts[1]
	}
	return b.Submit(duofern.CommandRequest{Command: "statusRequest", Device: duofern.DeviceCode(dev)})
}

func sendSimpleCommand(b *duofern.Bridge, cmd string, parts []string) error {
	if len(parts) < 2 {
		return fmt.Errorf("usage: %s <device>", cmd)
	}
	return b.Submit(duofern.CommandRequest{Command: cmd, Device: duofern.DeviceCode(parts[1])})
}

func sendPercentCommand(b *duofern.Bridge, cmd string, parts []string) error {
	if len(parts) < 3 {
		return fmt.Errorf("usage: %s <device> <percent>", cmd)
	}
	pct, err := strconv.Atoi(parts[2])
	if err != nil {
		return fmt.Errorf("invalid percent %q: %w", parts[2], err)
	}
	return b.Submit(duofern.CommandRequest{Command: cmd, Device: duofern.DeviceCode(parts[1]), Percent: pct})
}

func sendAutomaticCommand(b *duofern.Bridge, parts []string) error {
	if len(parts) < 4 {
		return fmt.Errorf("usage: automatic <name> <on|off> <device>")
	}
	on := parts[2] == "on"
	return b.Submit(duofern.CommandRequest{
		Command:     "automatic",
		Device:      duofern.DeviceCode(parts[3]),
		Automatic:   parts[1],
		AutomaticOn: on,
	})
}

func mustLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zap.NewDevelopmentEncoderConfig().EncodeLevel
	log, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return log
}
