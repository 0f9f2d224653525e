package server

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/remoteui/uisync/internal/transport"
)

// Sample is one reading of host load, in percent.
type Sample struct {
	CPU    float64
	Memory float64
}

// Sampler reads host load.
type Sampler func(ctx context.Context) (Sample, error)

// HostSampler reads CPU and memory usage of the local machine.
func HostSampler(ctx context.Context) (Sample, error) {
	var s Sample
	pcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return s, err
	}
	if len(pcts) > 0 {
		s.CPU = pcts[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, err
	}
	s.Memory = vm.UsedPercent
	return s, nil
}

// Generator pushes server-initiated updates: the clock label and the
// host load gauges.
type Generator struct {
	store    *Store
	hub      *Hub
	interval time.Duration
	sample   Sampler
	now      func() time.Time
}

func NewGenerator(store *Store, hub *Hub, interval time.Duration) *Generator {
	return &Generator{
		store:    store,
		hub:      hub,
		interval: interval,
		sample:   HostSampler,
		now:      time.Now,
	}
}

// Run ticks until ctx is done.
func (g *Generator) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.tick(ctx)
		}
	}
}

func (g *Generator) tick(ctx context.Context) {
	var events []transport.Event
	text := g.now().Format(time.TimeOnly)
	if g.store.SetProperty("clock", PropText, text) == nil {
		events = append(events, propertyEvent("clock", PropText, text))
	}

	s, err := g.sample(ctx)
	if err != nil {
		log.Printf("generator: sampling host load: %v", err)
	} else {
		for _, gauge := range []struct {
			id string
			v  float64
		}{{"cpu", s.CPU}, {"mem", s.Memory}} {
			v := math.Round(gauge.v*10) / 10
			if g.store.SetProperty(gauge.id, PropValue, v) == nil {
				events = append(events, propertyEvent(gauge.id, PropValue, v))
			}
		}
	}

	g.hub.Publish(events...)
}
