// Command pagewatch is pagewatch's CLI entry point (spec.md §6):
// monitor, transmit, and test subcommands over the internal packages.
// Grounded on the teacher's main.go flag-parsing and exit-code
// conventions (flag.NewFlagSet per subcommand, log.Printf to stderr,
// os.Exit with a distinct argument-error code).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cwsl/pagewatch/internal/codec"
	"github.com/cwsl/pagewatch/internal/endpoint"
	"github.com/cwsl/pagewatch/internal/metrics"
	"github.com/cwsl/pagewatch/internal/monitor"
	"github.com/cwsl/pagewatch/internal/page"
	"github.com/cwsl/pagewatch/internal/perr"
	"github.com/cwsl/pagewatch/internal/supervisor"
	"github.com/cwsl/pagewatch/internal/transmit"
)

const (
	exitOK       = 0
	exitRuntime  = 1
	exitArgError = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: pagewatch <monitor|transmit|test> [flags]")
		return exitArgError
	}

	switch args[0] {
	case "monitor":
		return runMonitor(args[1:], false)
	case "test":
		return runMonitor(args[1:], true)
	case "transmit":
		return runTransmit(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", args[0])
		return exitArgError
	}
}

func runMonitor(args []string, testMode bool) int {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	address := fs.String("address", "", "multicast address pattern")
	port := fs.Uint("port", 5004, "UDP port (or pattern default)")
	codecHint := fs.String("codec", "", "codec forced for every payload type (overrides the payload-type mapping)")
	output := fs.String("output", "", "directory for per-page WAV recordings, metrics.jsonl and summary.json (one WAV file per page; pages are never combined into one file)")
	timeoutSecs := fs.Float64("timeout", 0, "run duration in seconds (0 = forever)")
	jsonOut := fs.Bool("json", false, "print summary.json to stdout on exit")
	metricsIntervalMs := fs.Int("metrics-interval", 500, "metrics snapshot interval in milliseconds")
	pushgatewayURL := fs.String("pushgateway", "", "Prometheus pushgateway URL (opt-in; empty disables pushing)")
	pushgatewayJob := fs.String("pushgateway-job", "pagewatch", "pushgateway job label")
	pushgatewayIntervalSecs := fs.Float64("pushgateway-interval", 15, "pushgateway push interval in seconds")
	if err := fs.Parse(args); err != nil {
		return exitArgError
	}
	if *address == "" {
		fmt.Fprintln(os.Stderr, "--address is required")
		return exitArgError
	}
	if testMode && *output == "" {
		fmt.Fprintln(os.Stderr, "--output is required for test mode")
		return exitArgError
	}

	eps, err := endpoint.Expand(addressPattern(*address, int(*port)), true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid address pattern: %v\n", err)
		return exitArgError
	}

	outputDir := *output
	if outputDir == "" {
		outputDir, err = os.MkdirTemp("", "pagewatch-recordings-")
		if err != nil {
			fmt.Fprintf(os.Stderr, "creating recording dir: %v\n", err)
			return exitRuntime
		}
	} else if !testMode && len(eps) > 1 {
		fmt.Fprintln(os.Stderr, string(perr.AmbiguousOutput)+": --output requires a single endpoint in monitor mode")
		return exitArgError
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "creating %s: %v\n", outputDir, err)
		return exitRuntime
	}

	pageOpts := page.Options{
		RecordingDir:   outputDir,
		AnalyzerWindow: 1024,
		CodecHint:      *codecHint,
	}

	var pushCfg metrics.PushgatewayConfig
	if *pushgatewayURL != "" {
		pushCfg = metrics.PushgatewayConfig{
			URL:      *pushgatewayURL,
			Job:      *pushgatewayJob,
			Interval: time.Duration(*pushgatewayIntervalSecs * float64(time.Second)),
		}
	}

	opts := supervisor.Options{
		Endpoints:       eps,
		Timeout:         time.Duration(*timeoutSecs * float64(time.Second)),
		MetricsInterval: time.Duration(*metricsIntervalMs) * time.Millisecond,
		JSONLPath:       filepath.Join(outputDir, "metrics.jsonl"),
		SummaryPath:     filepath.Join(outputDir, "summary.json"),
		Pattern:         *address,
		Gauges:          metrics.NewPrometheusGauges(),
		Pushgateway:     pushCfg,
	}

	sup, err := supervisor.New(opts, func(ep endpoint.Endpoint, sink *metrics.Sink) (supervisor.Worker, error) {
		return monitor.New(ep, nil, pageOpts, sink, opts.MetricsInterval), nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "starting supervisor: %v\n", err)
		return exitRuntime
	}

	if err := sup.Run(context.Background()); err != nil {
		if testMode {
			// test mode always exits 0; runtime errors are captured in
			// summary.json.errors, per spec.md §6.
			log.Printf("pagewatch: run ended with error: %v", err)
		} else {
			fmt.Fprintf(os.Stderr, "pagewatch: %v\n", err)
			return exitRuntime
		}
	}

	if *jsonOut || testMode {
		data, err := os.ReadFile(opts.SummaryPath)
		if err == nil {
			os.Stdout.Write(data)
		}
	}
	return exitOK
}

func runTransmit(args []string) int {
	fs := flag.NewFlagSet("transmit", flag.ContinueOnError)
	file := fs.String("file", "", "PCM WAV file to transmit")
	address := fs.String("address", "", "multicast address")
	port := fs.Uint("port", 5004, "UDP port")
	codecName := fs.String("codec", "g711ulaw", "codec name")
	loop := fs.Bool("loop", false, "restart the source at EOF")
	ttl := fs.Int("ttl", 1, "multicast TTL")
	if err := fs.Parse(args); err != nil {
		return exitArgError
	}
	if *file == "" || *address == "" {
		fmt.Fprintln(os.Stderr, "--file and --address are required")
		return exitArgError
	}

	src, err := transmit.OpenWAVFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening %s: %v\n", *file, err)
		return exitArgError
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err = transmit.Run(ctx, src, transmit.Options{
		Address:   *address,
		Port:      uint16(*port),
		CodecName: *codecName,
		Loop:      *loop,
		TTL:       *ttl,
		CodecOpts: codec.Options{},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pagewatch: %v\n", err)
		return exitRuntime
	}
	return exitOK
}

// addressPattern appends --port to --address only when the pattern
// doesn't already specify a port itself (spec.md §4.1's grammar allows
// an embedded ":port" or ":{lo-hi}" clause).
func addressPattern(address string, port int) string {
	for _, r := range address {
		if r == ':' {
			return address
		}
	}
	return fmt.Sprintf("%s:%d", address, port)
}
