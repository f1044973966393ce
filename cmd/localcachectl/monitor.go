package main

import (
	"fmt"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/urfave/cli/v2"
)

const pollInterval = time.Second

func monitorCmd() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "render a live dashboard of daemon STATS",
		Action: func(c *cli.Context) error {
			return runMonitor()
		},
	}
}

func runMonitor() error {
	cl, err := connectWithConfig()
	if err != nil {
		return fmt.Errorf("localcachectl: %w", err)
	}
	defer cl.Close()

	if err := ui.Init(); err != nil {
		return fmt.Errorf("localcachectl: failed to init terminal ui: %w", err)
	}
	defer ui.Close()

	memGauge := widgets.NewGauge()
	memGauge.Title = "memory pressure"
	memGauge.SetRect(0, 0, 60, 3)

	limitGauge := widgets.NewGauge()
	limitGauge.Title = "pressure limit"
	limitGauge.SetRect(0, 3, 60, 6)

	info := widgets.NewParagraph()
	info.Title = "localcached"
	info.SetRect(0, 6, 60, 16)

	draw := func() {
		stats, err := cl.Stats()
		if err != nil {
			info.Text = fmt.Sprintf("error polling stats: %v", err)
			ui.Render(memGauge, limitGauge, info)
			return
		}
		memGauge.Percent = int(stats.MemPressureBp) / 100
		limitGauge.Percent = int(stats.PressureLimitBp) / 100
		info.Text = fmt.Sprintf(
			"uptime:         %ds\nkeys:           %d\napprox mem:     %d bytes\nmem available:  %d bytes\nevictions:      %d\ntopics:         %d\npublished:      %d\nlagged:         %d\ninvalid keys:   %d\nhits / misses:  %d / %d",
			stats.UptimeMs/1000, stats.KeysCount, stats.ApproxMemBytes, stats.MemAvailableBytes,
			stats.EvictionsTotal, stats.PubsubTopics, stats.EventsPublishedTotal,
			stats.EventsLaggedTotal, stats.InvalidKeyTotal, stats.HitsTotal, stats.MissesTotal,
		)
		ui.Render(memGauge, limitGauge, info)
	}

	draw()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	uiEvents := ui.PollEvents()

	for {
		select {
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			}
		case <-ticker.C:
			draw()
		}
	}
}
