// Package main provides the gpuops CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"k8s.io/klog/v2"

	"github.com/born-ml/gpuops/internal/config"
	"github.com/born-ml/gpuops/internal/executor"
	"github.com/born-ml/gpuops/internal/gpu"
	"github.com/born-ml/gpuops/internal/gpu/gputest"
	"github.com/born-ml/gpuops/internal/gpu/webgpu"
	"github.com/born-ml/gpuops/internal/graph"
	"github.com/born-ml/gpuops/internal/operators"
)

const version = "v0.1.0-dev"

var errUsage = errors.New("usage")

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	cfg := config.Load()
	flag.StringVar(&cfg.Backend, "backend", cfg.Backend, "device backend: webgpu or recorder")
	flag.IntVar(&cfg.MaxBatch, "max-batch", cfg.MaxBatch, "compute passes per encoder on webgpu (0 = no limit)")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "log operator outputs after each pass")
	flag.StringVar(&cfg.Power, "power", cfg.Power, "adapter power preference: high or low")
	fill := flag.Float64("fill", 1, "value written to every feed by run")
	flag.Usage = func() { usage(flag.CommandLine.Output()) }
	flag.Parse()

	err := run(context.Background(), os.Stdout, cfg, float32(*fill), flag.Args())
	if errors.Is(err, errUsage) {
		usage(os.Stderr)
		klog.Flush()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		klog.Flush()
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "gpuops %s - GPU operator dispatch for inference graphs\n\n", version)
	fmt.Fprintln(w, "Usage: gpuops [flags] <command> [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version              Show version")
	fmt.Fprintln(w, "  ops                  List supported operator kinds")
	fmt.Fprintln(w, "  check <program.yaml> Build the program on the recorder device and print variable shapes")
	fmt.Fprintln(w, "  run <program.yaml>   Run one inference pass and print fetched values")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Flags:")
	flag.CommandLine.SetOutput(w)
	flag.PrintDefaults()
}

func run(ctx context.Context, w io.Writer, cfg *config.Config, fill float32, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	switch args[0] {
	case "version":
		fmt.Fprintf(w, "gpuops %s\n", version)
		return nil
	case "ops":
		return listOps(w, operators.NewRegistry())
	case "check":
		if len(args) != 2 {
			return errUsage
		}
		return check(ctx, w, args[1])
	case "run":
		if len(args) != 2 {
			return errUsage
		}
		return runProgram(ctx, w, cfg, args[1], fill)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func listOps(w io.Writer, reg *operators.Registry) error {
	fmt.Fprintf(w, "%-16s %-12s %s\n", "KIND", "INPUTS", "OUTPUTS")
	for _, kind := range reg.SupportedOps() {
		info, _ := reg.Info(kind)
		fmt.Fprintf(w, "%-16s %-12s %s\n", kind, strings.Join(info.Inputs, ","), strings.Join(info.Outputs, ","))
	}
	return nil
}

func check(ctx context.Context, w io.Writer, path string) error {
	prog, err := graph.LoadFile(path)
	if err != nil {
		return err
	}
	e, err := executor.New(ctx, gputest.New(), prog, operators.NewRegistry())
	if err != nil {
		return err
	}
	defer e.Release()

	fmt.Fprintf(w, "%s: %d ops\n", prog.Name, len(e.Ops()))
	scope := e.Scope()
	for _, name := range scope.Names() {
		v, _ := scope.Var(name)
		kind := ""
		if v.Persistable {
			kind = " persistable"
		}
		fmt.Fprintf(w, "  %s%s\n", v, kind)
	}
	return nil
}

// recorderNote heads the output of run on the recorder backend, which
// records dispatches without executing them.
const recorderNote = "# recorder backend: shaders are not executed, values written by compute ops are zero"

func openDevice(cfg *config.Config) (gpu.Device, error) {
	if cfg.Backend == config.BackendRecorder {
		return gputest.New(), nil
	}
	return webgpu.Open(webgpu.Options{
		LowPower: cfg.Power == config.PowerLow,
		MaxBatch: cfg.MaxBatch,
	})
}

func runProgram(ctx context.Context, w io.Writer, cfg *config.Config, path string, fill float32) error {
	log := klog.FromContext(ctx)

	prog, err := graph.LoadFile(path)
	if err != nil {
		return err
	}
	device, err := openDevice(cfg)
	if err != nil {
		return fmt.Errorf("opening %s device: %w", cfg.Backend, err)
	}
	defer device.Release()
	log.Info("using device", "name", device.Name())

	e, err := executor.New(ctx, device, prog, operators.NewRegistry(), executor.WithDebug(cfg.Debug))
	if err != nil {
		return err
	}
	defer e.Release()

	feeds := make(map[string][]float32)
	for _, name := range e.FeedNames() {
		shape, _ := e.FeedShape(name)
		values := make([]float32, shape.NumElements())
		for i := range values {
			values[i] = fill
		}
		feeds[name] = values
	}

	results, err := e.Predict(ctx, feeds)
	if err != nil {
		return err
	}
	if cfg.Backend == config.BackendRecorder {
		fmt.Fprintln(w, recorderNote)
	}
	for _, name := range sortedKeys(results) {
		fmt.Fprintf(w, "%s: %v\n", name, results[name])
	}
	return nil
}

func sortedKeys(m map[string][]float32) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
