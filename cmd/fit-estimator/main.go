package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/gpustack/fit-estimator-go/util/anyx"
	"github.com/gpustack/fit-estimator-go/util/json"
	"github.com/gpustack/fit-estimator-go/util/signalx"

	. "github.com/gpustack/fit-estimator-go"
)

var Version = "v0.0.0"

func main() {
	name := filepath.Base(os.Args[0])
	app := &cli.App{
		Name:            name,
		Usage:           "Estimate whether LLMs fit onto the given accelerators and host, and how fast they run.",
		UsageText:       name + " [GLOBAL OPTIONS]",
		Version:         Version,
		Reader:          os.Stdin,
		Writer:          os.Stdout,
		ErrWriter:       os.Stderr,
		HideHelpCommand: true,
		OnUsageError: func(c *cli.Context, _ error, _ bool) error {
			return cli.ShowAppHelp(c)
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Destination: &debug,
				Value:       debug,
				Name:        "debug",
				Usage:       "Enable debugging, verbosity.",
			},
			&cli.StringSliceFlag{
				Destination: &inventories,
				Category:    "Inventory",
				Name:        "inventory",
				Aliases:     []string{"i"},
				Usage: "Path where the inventory file to load, " +
					"in JSON, YAML or TOML, can be given multiple times, " +
					"e.g. ~/workstation.yaml. " +
					"Overrides the device, host and model flags.",
			},
			&cli.StringSliceFlag{
				Destination: &devices,
				Category:    "Inventory",
				Name:        "device",
				Aliases:     []string{"d"},
				Usage: "Specify an accelerator as NAME=CAPACITY, " +
					"can be given multiple times in allocation priority order, " +
					"e.g. \"RTX 4090=24G\".",
			},
			&cli.BoolFlag{
				Destination: &unifiedMemory,
				Value:       unifiedMemory,
				Category:    "Inventory",
				Name:        "unified-memory",
				Usage:       "Specify the accelerators share the host memory, e.g. Apple silicon.",
			},
			&cli.StringFlag{
				Destination: &ram,
				Value:       ram,
				Category:    "Inventory",
				Name:        "ram",
				Usage:       "Specify the size of the host memory, e.g. 64G.",
			},
			&cli.IntFlag{
				Destination: &memorySpeed,
				Value:       memorySpeed,
				Category:    "Inventory",
				Name:        "memory-speed",
				Usage:       "Specify the host memory transfer rate in MT/s.",
			},
			&cli.IntFlag{
				Destination: &memoryCASLatency,
				Value:       memoryCASLatency,
				Category:    "Inventory",
				Name:        "memory-cas-latency",
				Usage:       "Specify the host memory CAS latency in cycles, 0 for unknown.",
			},
			&cli.StringFlag{
				Destination: &osClass,
				Value:       osClass,
				Category:    "Inventory",
				Name:        "os",
				Usage:       "Specify the operating system, select from [linux, windows, macos].",
			},
			&cli.StringFlag{
				Destination: &storage,
				Value:       storage,
				Category:    "Inventory",
				Name:        "storage",
				Usage:       "Specify the storage class, select from [nvme, sata_ssd, hdd].",
			},
			&cli.StringFlag{
				Destination: &cpuArch,
				Value:       cpuArch,
				Category:    "Inventory",
				Name:        "cpu-arch",
				Usage:       "Specify the CPU architecture, select from [x86, arm, apple].",
			},
			&cli.IntFlag{
				Destination: &cpuCores,
				Value:       cpuCores,
				Category:    "Inventory",
				Name:        "cpu-cores",
				Usage:       "Specify the count of physical CPU cores.",
			},
			&cli.IntFlag{
				Destination: &cpuThreads,
				Value:       cpuThreads,
				Category:    "Inventory",
				Name:        "cpu-threads",
				Usage:       "Specify the count of CPU hardware threads.",
			},
			&cli.StringFlag{
				Destination: &software,
				Value:       software,
				Category:    "Inventory",
				Name:        "software",
				Usage:       "Specify the inference software, select from [llama.cpp, ollama, lmstudio, vllm, exllamav2].",
			},
			&cli.StringFlag{
				Destination: &modelID,
				Value:       modelID,
				Category:    "Model",
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "Specify the model name.",
			},
			&cli.Float64Flag{
				Destination: &parameters,
				Value:       parameters,
				Category:    "Model",
				Name:        "parameters",
				Usage:       "Specify the count of parameters in billions.",
			},
			&cli.StringFlag{
				Destination: &precision,
				Value:       precision,
				Category:    "Model",
				Name:        "precision",
				Usage: "Specify the precision of the weights, " +
					"select from [fp32, fp16, bf16, fp8, q8_0, q6_k, q5_k_m, q4_k_m, q4_0, q3_k_m, q2_k].",
			},
			&cli.StringFlag{
				Destination: &kvCachePrecision,
				Value:       kvCachePrecision,
				Category:    "Model",
				Name:        "kv-cache-precision",
				Aliases:     []string{"kv-type"},
				Usage:       "Specify the precision of the KV cache, select from [fp32, fp16, bf16, q8_0, q4_0].",
			},
			&cli.IntFlag{
				Destination: &ctxSize,
				Value:       ctxSize,
				Category:    "Model",
				Name:        "ctx-size",
				Aliases:     []string{"c"},
				Usage:       "Specify the size of prompt context.",
			},
			&cli.IntFlag{
				Destination: &batchSize,
				Value:       batchSize,
				Category:    "Model",
				Name:        "batch-size",
				Aliases:     []string{"b"},
				Usage:       "Specify the number of sequences to decode together.",
			},
			&cli.IntFlag{
				Destination: &hiddenSize,
				Value:       hiddenSize,
				Category:    "Model",
				Name:        "hidden-size",
				Usage:       "Specify the hidden (embedding) dimension.",
			},
			&cli.IntFlag{
				Destination: &layers,
				Value:       layers,
				Category:    "Model",
				Name:        "layers",
				Usage:       "Specify the number of transformer layers.",
			},
			&cli.StringFlag{
				Destination: &mode,
				Value:       mode,
				Category:    "Model",
				Name:        "mode",
				Usage:       "Specify the execution mode, select from [gpuOnly, hybrid, cpuOnly].",
			},
			&cli.IntFlag{
				Destination: &gpuLayers,
				Value:       gpuLayers,
				Category:    "Model",
				Name:        "gpu-layers",
				Aliases:     []string{"ngl"},
				Usage: "Specify how many layers to offload in hybrid mode, " +
					"default is splitting evenly.",
			},
			&cli.BoolFlag{
				Destination: &strictFit,
				Value:       strictFit,
				Category:    "Estimate",
				Name:        "strict-fit",
				Usage: "Specify downgrading the context length, the precision and the execution mode " +
					"until the model fits, instead of reporting the overflow.",
			},
			&cli.Float64Flag{
				Destination: &deviceReserved,
				Value:       deviceReserved,
				Category:    "Estimate",
				Name:        "device-reserved",
				Usage:       "Specify the capacity reserved on each accelerator in GiB.",
			},
			&cli.Float64Flag{
				Destination: &hostReservedFraction,
				Value:       hostReservedFraction,
				Category:    "Estimate",
				Name:        "host-reserved-fraction",
				Usage:       "Specify the fraction of the host memory withheld from cpuOnly models, in [0, 1).",
			},
			&cli.IntFlag{
				Destination: &solveAttempts,
				Value:       solveAttempts,
				Category:    "Estimate",
				Name:        "solve-attempts",
				Usage:       "Specify the maximum attempts of the strict fit solving.",
			},
			&cli.StringFlag{
				Destination: &backend,
				Value:       backend,
				Category:    "Estimate",
				Name:        "backend",
				EnvVars:     []string{BackendEnv},
				Usage:       "Specify the numeric backend, select from [native, vector], default is detecting.",
			},
			&cli.BoolFlag{
				Destination: &inJSON,
				Value:       inJSON,
				Category:    "Output",
				Name:        "json",
				Usage:       "Output as JSON.",
			},
			&cli.BoolFlag{
				Destination: &inPrettyJSON,
				Value:       inPrettyJSON,
				Category:    "Output",
				Name:        "json-pretty",
				Usage:       "Works with --json, to output pretty format JSON.",
			},
		},
		Action: run,
	}

	if err := app.RunContext(signalx.Handler(), os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

var (
	debug bool
	// inventory options
	inventories      cli.StringSlice
	devices          cli.StringSlice
	unifiedMemory    bool
	ram              = "32G"
	memorySpeed      = 4800
	memoryCASLatency int
	osClass          = string(OSClassLinux)
	storage          = string(StorageClassNVMe)
	cpuArch          = string(CPUArchClassX86)
	cpuCores         = 8
	cpuThreads       = 16
	software         = string(InferenceSoftwareLLaMACpp)
	// model options
	modelID          = "model"
	parameters       = float64(DefaultParametersBillion)
	precision        = string(PrecisionQ4_K_M)
	kvCachePrecision = string(PrecisionF16)
	ctxSize          = DefaultContextLength
	batchSize        = DefaultBatchSize
	hiddenSize       = DefaultHiddenSize
	layers           = DefaultLayers
	mode             = string(ExecutionModeHybrid)
	gpuLayers        = -1
	// estimate options
	strictFit            bool
	deviceReserved       = DeviceReservedGiB
	hostReservedFraction = HostReservedFraction
	solveAttempts        = SolveAttemptsMaximum
	backend              string
	// output options
	inJSON       bool
	inPrettyJSON = true
)

func run(c *cli.Context) error {
	ctx := c.Context

	lvl := zerolog.InfoLevel
	if debug {
		lvl = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().
		Logger()

	eopts, err := estimateOptions()
	if err != nil {
		return err
	}

	// Load inventories and calculate.

	var (
		invs []Inventory
		rs   []CalculationResult
	)
	if ps := inventories.Value(); len(ps) != 0 {
		invs, rs = make([]Inventory, len(ps)), make([]CalculationResult, len(ps))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range ps {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				inv, err := LoadInventory(ps[i])
				if err != nil {
					return err
				}
				logger.Debug().
					Str("path", ps[i]).
					Int("models", len(inv.Models)).
					Int("devices", len(inv.Devices)).
					Msg("loaded inventory")
				invs[i] = inv.Normalize()
				rs[i] = Calculate(invs[i].Models, invs[i].Devices, invs[i].Host, eopts...)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("interrupted: %w", context.Cause(ctx))
			}
			return err
		}
	} else {
		inv, err := flagInventory()
		if err != nil {
			return err
		}
		invs = []Inventory{inv.Normalize()}
		rs = []CalculationResult{Calculate(invs[0].Models, invs[0].Devices, invs[0].Host, eopts...)}
	}

	for i := range rs {
		report(logger, invs[i].Name, rs[i])
	}

	// Then, output as JSON or table.

	if inJSON {
		o := make([]map[string]any, len(rs))
		for i := range rs {
			o[i] = map[string]any{
				"inventory": invs[i],
				"estimate":  rs[i],
			}
		}

		enc := json.NewEncoder(os.Stdout)
		if inPrettyJSON {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(o); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	}

	for i := range rs {
		if len(rs) > 1 {
			fmt.Printf("INVENTORY: %s\n\n", invs[i].Name)
		}
		printResult(rs[i])
	}
	return nil
}

func estimateOptions() ([]EstimateOption, error) {
	if hostReservedFraction < 0 || hostReservedFraction >= 1 {
		return nil, fmt.Errorf("invalid --host-reserved-fraction %v, must be in [0, 1)", hostReservedFraction)
	}
	if deviceReserved < 0 {
		return nil, fmt.Errorf("invalid --device-reserved %v, must not be negative", deviceReserved)
	}

	eopts := []EstimateOption{
		WithDeviceReservation(deviceReserved),
		WithHostReservedFraction(hostReservedFraction),
		WithSolveAttemptsMaximum(solveAttempts),
	}
	if strictFit {
		eopts = append(eopts, WithStrictFit())
	}
	switch strings.ToLower(backend) {
	case "":
	case "native":
		eopts = append(eopts, WithBackend(NativeBackend{}))
	case "vector":
		eopts = append(eopts, WithBackend(VectorBackend{}))
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
	return eopts, nil
}

// flagInventory builds the inventory from the flags.
func flagInventory() (inv Inventory, err error) {
	inv.Name = modelID

	// Host.
	r, err := ParseGiBytesScalar(ram)
	if err != nil {
		return inv, fmt.Errorf("invalid --ram: %w", err)
	}
	inv.Host = HostConfig{
		OS:               OSClass(osClass),
		RAMGB:            float64(r),
		MemorySpeedMTs:   memorySpeed,
		MemoryCASLatency: memoryCASLatency,
		Storage:          StorageClass(storage),
		CPUArch:          CPUArchClass(cpuArch),
		CPUCores:         cpuCores,
		CPUThreads:       cpuThreads,
		Software:         InferenceSoftware(software),
	}

	// Devices.
	for i, s := range devices.Value() {
		d, err := ParseDevice(s, i)
		if err != nil {
			return inv, err
		}
		d.Unified = unifiedMemory
		inv.Devices = append(inv.Devices, d)
	}

	// Model.
	m := ModelSpec{
		ID:                modelID,
		ParametersBillion: parameters,
		ContextLength:     ctxSize,
		BatchSize:         batchSize,
		HiddenSize:        hiddenSize,
		Layers:            layers,
	}
	if m.Precision, err = ParsePrecision(precision); err != nil {
		return inv, fmt.Errorf("invalid --precision: %w", err)
	}
	if m.KVCachePrecision, err = ParseKVCachePrecision(kvCachePrecision); err != nil {
		return inv, fmt.Errorf("invalid --kv-cache-precision: %w", err)
	}
	if m.Mode, err = ParseExecutionMode(mode); err != nil {
		return inv, fmt.Errorf("invalid --mode: %w", err)
	}
	if gpuLayers >= 0 {
		m.GPULayers = min(gpuLayers, layers)
		m.CPULayers = layers - m.GPULayers
	}
	inv.Models = []ModelSpec{m}

	return inv, inv.Validate()
}

// report logs the solving and the overflow of the result.
func report(logger zerolog.Logger, name string, r CalculationResult) {
	logger.Debug().
		Str("inventory", name).
		Str("backend", r.Backend).
		Msg("calculated")

	for _, mr := range r.Models {
		if mr.Solve == nil {
			continue
		}
		for _, a := range mr.Solve.Adjustments {
			logger.Debug().
				Str("inventory", name).
				Str("model", mr.Model.ID).
				Stringer("adjustment", a).
				Msg("downgraded")
		}
		if mr.Solve.Exhausted {
			logger.Warn().
				Str("inventory", name).
				Str("model", mr.Model.ID).
				Int("attempts", mr.Solve.Attempts).
				Stringer("required", mr.Solve.Required).
				Stringer("limit", mr.Solve.Limit).
				Msg("no downgrade fits")
		}
	}
	if r.Overcapacity > 0 {
		logger.Warn().
			Str("inventory", name).
			Stringer("overcapacity", r.Overcapacity).
			Msg("layers exceed the usable capacity of the devices")
	}
	if r.RAM.Overflow > 0 {
		logger.Warn().
			Str("inventory", name).
			Stringer("overflow", r.RAM.Overflow).
			Msg("host memory overflows")
	}
}

func printResult(r CalculationResult) {
	// Models.
	{
		bds := make([][]string, len(r.Models))
		for i, mr := range r.Models {
			m := mr.Model
			adjs := "N/A"
			if mr.Solve != nil && len(mr.Solve.Adjustments) != 0 {
				ss := make([]string, len(mr.Solve.Adjustments))
				for j := range mr.Solve.Adjustments {
					ss[j] = mr.Solve.Adjustments[j].String()
				}
				adjs = strings.Join(ss, "\n")
			}
			bds[i] = []string{
				m.ID,
				sprintf(m.Parameters()),
				sprintf(m.Precision),
				sprintf(m.KVCachePrecision),
				sprintf(m.ContextLength),
				sprintf(m.Mode),
				sprintf("%d / %d", m.GPULayers, m.CPULayers),
				sprintf(mr.Footprint.Sum()),
				sprintf(mr.GPUUsage),
				sprintf(mr.CPUUsage),
				sprintf(tenary(mr.Overcapacity > 0, mr.Overcapacity, "N/A")),
				adjs,
			}
		}
		tprint(
			"MODELS",
			[]string{"Name", "Parameters", "Precision", "KV Cache", "Context Size", "Mode", "Layers (GPU / CPU)", "Layer Footprint", "GPU Usage", "CPU Usage", "Overcapacity", "Adjustments"},
			bds...)
	}

	// Devices.
	if len(r.Devices) != 0 {
		bds := make([][]string, len(r.Devices))
		for i, du := range r.Devices {
			bds[i] = anyx.Strings(
				du.Device.ID,
				du.Device.Name,
				du.Device.Position,
				GiBytesScalar(du.Device.CapacityGB),
				tenary(du.Device.Unified, "Yes", "No"),
				du.Layers,
				du.Used,
				du.Usable,
				tenary(du.Overflow > 0, du.Overflow, "N/A"))
		}
		tprint(
			"DEVICES",
			[]string{"ID", "Name", "Position", "Capacity", "Unified", "Layers", "Used", "Usable", "Overflow"},
			bds...)
	}

	// Performance.
	{
		p := r.Performance
		tprint(
			"PERFORMANCE",
			[]string{"Backend", "VRAM (Used / Usable)", "RAM (Used / Total)", "Base", "VRAM Penalty", "RAM Penalty", "Context Penalty", "Composite"},
			[]string{
				r.Backend,
				sprintf("%s / %s", r.VRAM.Used, r.VRAM.Available),
				sprintf("%s / %s", r.RAM.Used, r.RAM.Available),
				sprintf(p.Base),
				sprintf(p.VRAMPenalty),
				sprintf(p.RAMPenalty),
				sprintf(p.ContextPenalty),
				sprintf(p.Composite),
			})
	}
}

func sprintf(f any, a ...any) string {
	if v, ok := f.(string); ok {
		if len(a) != 0 {
			return fmt.Sprintf(v, a...)
		}
		return v
	}
	return anyx.String(f)
}

func tprint(title string, header []string, body ...[]string) {
	title = strings.ToUpper(title)

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Options.SeparateRows = true

	ccs := make([]table.ColumnConfig, len(header)+1)
	for i := range ccs {
		ccs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignCenter,
			AlignHeader: text.AlignCenter,
		}
	}
	ccs[0].AutoMerge = true
	ccs[0].WidthMin = 12
	tw.SetColumnConfigs(ccs)

	hr := make(table.Row, 0, len(header)+1)
	hr = append(hr, "\\")
	for i := range header {
		hr = append(hr, header[i])
	}
	tw.AppendHeader(hr)
	for i := range body {
		br := make(table.Row, 0, len(body[i])+1)
		br = append(br, title)
		for j := range body[i] {
			br = append(br, body[i][j])
		}
		tw.AppendRow(br)
	}

	tw.Render()
	fmt.Println()
}

func tenary(c bool, t, f any) any {
	if c {
		return t
	}
	return f
}
