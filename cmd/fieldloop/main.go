package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/tomren/fieldloop/internal/compute"
	"github.com/tomren/fieldloop/internal/config"
	"github.com/tomren/fieldloop/internal/engine"
	"github.com/tomren/fieldloop/internal/events"
	"github.com/tomren/fieldloop/internal/field"
	"github.com/tomren/fieldloop/internal/metrics"
	"github.com/tomren/fieldloop/internal/particles"
	"github.com/tomren/fieldloop/internal/storage"
	"github.com/tomren/fieldloop/internal/tui"
)

var (
	dataDir    string
	configFile string
	verbose    bool

	ticks     int
	nParts    int
	seed      int64
	device    string
	dt        float64
	gravity   float64
	damping   float64
	diffuse   bool
	preset    string
	saveRun   bool
	loadField string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fieldloop",
		Short: "vector-field simulation with two-way particle coupling",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".fieldloop", "data directory for saved runs")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the simulation headless",
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)
	runCmd.Flags().BoolVar(&saveRun, "save", false, "save run artifacts under the data directory")
	runCmd.Flags().StringVar(&loadField, "load-field", "", "initialize the grid from a field dump")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run with a live terminal readout",
		RunE:  runLive,
	}
	addSimFlags(liveCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "time ticks on each available device",
		RunE:  runBench,
	}
	addSimFlags(benchCmd)

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "list compute devices",
		RunE:  listDevices,
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	configCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a default config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(args[0], config.Default())
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, benchCmd, devicesCmd, runsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&ticks, "ticks", 300, "simulation ticks")
	cmd.Flags().IntVar(&nParts, "particles", 64, "particles to seed")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed for particle placement")
	cmd.Flags().StringVar(&device, "device", "", "compute device (sequential|accelerated)")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&gravity, "gravity", config.DefaultGravity, "gravity per tick")
	cmd.Flags().Float64Var(&damping, "damping", config.DefaultDamping, "isotropic velocity damping")
	cmd.Flags().BoolVar(&diffuse, "diffuse", false, "apply field diffusion every tick")
	cmd.Flags().StringVar(&preset, "preset", "", "named preset configuration")
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (have %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("gravity") {
		cfg.Gravity = gravity
	}
	if cmd.Flags().Changed("damping") {
		cfg.Damping = damping
	}
	if cmd.Flags().Changed("diffuse") {
		cfg.DiffusePerTick = diffuse
	}
	if device != "" {
		cfg.Device = device
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type app struct {
	cfg    *config.Store
	bus    *events.Bus
	disp   *compute.Dispatcher
	store  *field.Store
	set    *particles.Set
	engine *engine.Engine
	log    *slog.Logger
}

// buildApp is the composition root: the grid, dispatcher, and particle set
// are constructed explicitly here and passed by reference down the stack.
func buildApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := newLogger()
	bus := events.NewBus(log)
	cfgStore := config.NewStore(cfg, log)
	disp := compute.NewDispatcher(cfgStore, bus, log)

	grid, err := field.New(cfg.GridWidth, cfg.GridHeight, field.Vec2{})
	if err != nil {
		return nil, err
	}
	store := field.NewStore(grid)
	set := particles.NewSet()

	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < nParts; i++ {
		x := rng.Float32() * float32(cfg.GridWidth-1)
		y := rng.Float32() * float32(cfg.GridHeight-1)
		mag := 0.5 + rng.Float32()*1.5
		if err := set.Add(x, y, mag, 0, 0); err != nil {
			return nil, err
		}
	}

	return &app{
		cfg:    cfgStore,
		bus:    bus,
		disp:   disp,
		store:  store,
		set:    set,
		engine: engine.New(store, disp, set, cfgStore, bus, log),
		log:    log,
	}, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.disp.Close()

	if loadField != "" {
		if err := a.store.LoadFile(loadField); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	result, err := a.engine.Run(ctx, ticks)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	printSummary(result, a.disp.Active(), elapsed)

	if saveRun {
		runStore := storage.New(dataDir)
		if err := runStore.Init(); err != nil {
			return err
		}
		cfg := a.cfg.Config()
		fieldSummary := metrics.Summarize(result.FieldEnergy)
		id, err := runStore.Save(storage.RunMetadata{
			Device:  string(a.disp.Active()),
			Ticks:   result.Ticks,
			Dt:      cfg.Dt,
			Gravity: cfg.Gravity,
			Damping: cfg.Damping,
			Metrics: map[string]float64{
				"field_energy_final": fieldSummary.Final,
				"field_energy_max":   fieldSummary.Max,
			},
		}, a.set.Snapshot(), a.store)
		if err != nil {
			return err
		}
		fmt.Printf("saved run %s\n", id)
	}
	return nil
}

var headerStyle = lipgloss.NewStyle().Bold(true)

func printSummary(result *engine.Result, active compute.Kind, elapsed time.Duration) {
	fs := metrics.Summarize(result.FieldEnergy)
	ks := metrics.Summarize(result.Kinetic)

	fmt.Println(headerStyle.Render(fmt.Sprintf("%d ticks on %s in %s", result.Ticks, active, elapsed.Round(time.Millisecond))))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "field energy\tmean %.6f\tmax %.6f\tfinal %.6f\n", fs.Mean, fs.Max, fs.Final)
	fmt.Fprintf(w, "kinetic energy\tmean %.6f\tmax %.6f\tfinal %.6f\n", ks.Mean, ks.Max, ks.Final)
	w.Flush()

	if len(result.FieldEnergy) > 1 {
		fmt.Println(asciigraph.Plot(result.FieldEnergy,
			asciigraph.Height(10),
			asciigraph.Width(72),
			asciigraph.Caption("field energy per tick"),
		))
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.disp.Close()

	done := make(chan struct{})
	model := tui.NewModel(a.bus, done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		defer close(done)
		if _, err := a.engine.Run(ctx, ticks); err != nil && ctx.Err() == nil {
			a.log.Error("simulation stopped", "error", err)
		}
	}()

	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return err
	}
	cancel()
	return nil
}

func runBench(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.disp.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "device\tticks\telapsed\tper tick")
	for _, desc := range a.disp.Describe() {
		if !desc.Available {
			fmt.Fprintf(w, "%s\t-\tunavailable: %v\t-\n", desc.Kind, desc.InitErr)
			continue
		}
		if err := a.disp.SetDevice(desc.Kind); err != nil {
			return err
		}
		a.store.Clear()
		a.set.Clear()
		rng := rand.New(rand.NewSource(seed))
		cfg := a.cfg.Config()
		for i := 0; i < nParts; i++ {
			x := rng.Float32() * float32(cfg.GridWidth-1)
			y := rng.Float32() * float32(cfg.GridHeight-1)
			if err := a.set.Add(x, y, 1, 0, 0); err != nil {
				return err
			}
		}
		start := time.Now()
		if _, err := a.engine.Run(context.Background(), ticks); err != nil {
			return err
		}
		elapsed := time.Since(start)
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", desc.Kind, ticks,
			elapsed.Round(time.Millisecond), (elapsed / time.Duration(ticks)).Round(time.Microsecond))
	}
	return w.Flush()
}

func listDevices(cmd *cobra.Command, args []string) error {
	log := newLogger()
	bus := events.NewBus(log)
	disp := compute.NewDispatcher(config.NewStore(config.Default(), log), bus, log)
	defer disp.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "kind\tavailable\tdevice\terror")
	for _, d := range disp.Describe() {
		errText := "-"
		if d.InitErr != nil {
			errText = d.InitErr.Error()
		}
		name := d.Device
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", d.Kind, d.Available, name, errText)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no saved runs")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "id\ttimestamp\tdevice\tticks\tparticles\tgrid")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%dx%d\n",
			r.ID, r.Timestamp.Format(time.RFC3339), r.Device, r.Ticks, r.Particles, r.GridW, r.GridH)
	}
	return w.Flush()
}
