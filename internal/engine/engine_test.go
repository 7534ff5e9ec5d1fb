package engine_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tomren/fieldloop/internal/compute"
	"github.com/tomren/fieldloop/internal/config"
	"github.com/tomren/fieldloop/internal/engine"
	"github.com/tomren/fieldloop/internal/events"
	"github.com/tomren/fieldloop/internal/field"
	"github.com/tomren/fieldloop/internal/particles"
)

var _ = Describe("Engine", func() {
	var (
		cfg  *config.Store
		bus  *events.Bus
		disp *compute.Dispatcher
		set  *particles.Set
		eng  *engine.Engine
	)

	newEngine := func(w, h int) *engine.Engine {
		doc := config.Default()
		doc.GridWidth = w
		doc.GridHeight = h
		doc.Gravity = 0
		doc.Damping = 1
		cfg = config.NewStore(doc, nil)
		bus = events.NewBus(nil)
		disp = compute.NewDispatcher(cfg, bus, nil)
		set = particles.NewSet()
		grid, err := field.New(w, h, field.Vec2{})
		Expect(err).NotTo(HaveOccurred())
		return engine.New(field.NewStore(grid), disp, set, cfg, bus, nil)
	}

	BeforeEach(func() {
		eng = newEngine(16, 16)
	})

	AfterEach(func() {
		disp.Close()
	})

	Describe("Tick", func() {
		It("advances the tick counter", func() {
			Expect(eng.Tick()).To(Succeed())
			Expect(eng.Tick()).To(Succeed())
			Expect(eng.Ticks()).To(Equal(2))
		})

		It("ticks an empty particle set without touching the field", func() {
			Expect(eng.Tick()).To(Succeed())
			for _, f := range eng.Store().Snapshot() {
				Expect(f).To(BeZero())
			}
		})

		It("seeds the field from particles", func() {
			Expect(set.Add(8, 8, 1, 0, 0)).To(Succeed())
			Expect(eng.Tick()).To(Succeed())

			snap := eng.Store().Snapshot()
			nonzero := 0
			for _, f := range snap {
				if f != 0 {
					nonzero++
				}
			}
			// The cross seed writes one component in each of four cells.
			Expect(nonzero).To(Equal(4))
		})

		It("publishes a TickCompleted event with diagnostics", func() {
			var got []events.Event
			bus.Subscribe(events.TickCompleted, func(e events.Event) {
				got = append(got, e)
			})
			Expect(set.Add(8, 8, 2, 0, 0)).To(Succeed())
			Expect(eng.Tick()).To(Succeed())

			Expect(got).To(HaveLen(1))
			Expect(got[0].Tick).To(Equal(1))
			Expect(got[0].Particles).To(Equal(1))
			Expect(got[0].FieldEnergy).To(BeNumerically(">", 0))
			Expect(got[0].Device).To(Equal("sequential"))
		})

		It("applies diffusion when configured", func() {
			Expect(cfg.SetBool(config.KeyDiffusePerTick, true)).To(Succeed())
			Expect(set.Add(8, 8, 1, 0, 0)).To(Succeed())
			Expect(eng.Tick()).To(Succeed())

			// With diffusion on, the cross arms smear outward past the
			// four seeded cells.
			snap := eng.Store().Snapshot()
			nonzero := 0
			for _, f := range snap {
				if f != 0 {
					nonzero++
				}
			}
			Expect(nonzero).To(BeNumerically(">", 4))
		})
	})

	Describe("Run", func() {
		It("collects per-tick series", func() {
			Expect(set.Add(8, 8, 1, 0.1, 0)).To(Succeed())
			res, err := eng.Run(context.Background(), 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Ticks).To(Equal(10))
			Expect(res.FieldEnergy).To(HaveLen(10))
			Expect(res.Kinetic).To(HaveLen(10))
			Expect(res.FieldEnergy[0]).To(BeNumerically(">", 0))
			// Seeds accumulate, so field energy grows across ticks.
			Expect(res.FieldEnergy[9]).To(BeNumerically(">", res.FieldEnergy[0]))
		})

		It("rejects non-positive tick counts", func() {
			_, err := eng.Run(context.Background(), 0)
			Expect(err).To(HaveOccurred())
		})

		It("honors context cancellation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			res, err := eng.Run(ctx, 100)
			Expect(err).To(MatchError(context.Canceled))
			Expect(res.Ticks).To(Equal(0))
		})
	})

	Describe("device selection", func() {
		It("runs on the sequential backend by default", func() {
			Expect(disp.Active()).To(Equal(compute.Sequential))
		})

		It("keeps the device when an unavailable one is requested", func() {
			if disp.Describe()[1].Available {
				Skip("accelerated backend available on this machine")
			}
			Expect(disp.SetDevice(compute.Accelerated)).NotTo(Succeed())
			Expect(disp.Active()).To(Equal(compute.Sequential))
			Expect(eng.Tick()).To(Succeed())
		})
	})
})
