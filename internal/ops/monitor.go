package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ecotracker/backend/pkg/logger"
)

// UsageReport summarises what Monitor found.
type UsageReport struct {
	RunningMachines int
	DedicatedIPv4   bool
	HasVolumes      bool
	Warnings        []string
}

// Monitor inspects a Fly.io app for settings that cost money.
type Monitor struct {
	Runner     Runner
	Out        io.Writer
	Binary     string
	ConfigPath string
	Now        func() time.Time
}

func NewMonitor(runner Runner, out io.Writer, binary, configPath string) *Monitor {
	return &Monitor{
		Runner:     runner,
		Out:        out,
		Binary:     binary,
		ConfigPath: configPath,
		Now:        time.Now,
	}
}

type machineStatus struct {
	Machines []struct {
		ID    string `json:"id"`
		State string `json:"state"`
	} `json:"Machines"`
}

func (m *Monitor) Run(ctx context.Context) (*UsageReport, error) {
	header(m.Out, "Fly.io usage monitor")
	fmt.Fprintf(m.Out, "Checked at %s\n", m.Now().Format("2006-01-02 15:04:05"))

	app, err := LoadFlyConfig(m.ConfigPath)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(m.Out, "App: %s\n", app.Name)

	report := &UsageReport{}

	header(m.Out, "App status")
	out, err := runStep(ctx, m.Runner, "app status", m.Binary, "status")
	if err != nil {
		return nil, fmt.Errorf("failed to get app status: %w", err)
	}
	fmt.Fprint(m.Out, out)

	header(m.Out, "Running machines")
	out, err = runStep(ctx, m.Runner, "machine status", m.Binary, "status", "--json")
	if err != nil {
		return nil, fmt.Errorf("failed to get machine status: %w", err)
	}
	var status machineStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		return nil, fmt.Errorf("failed to parse machine status: %w", err)
	}
	for _, machine := range status.Machines {
		if machine.State == "started" {
			report.RunningMachines++
		}
	}
	fmt.Fprintf(m.Out, "Running machines: %d\n", report.RunningMachines)
	if report.RunningMachines > 1 {
		report.warn(m.Out, fmt.Sprintf(
			"%d machines are running. The free tier covers up to 3 shared-cpu-1x VMs, but idle machines should stop.",
			report.RunningMachines))
	}

	header(m.Out, "IP addresses")
	out, err = runStep(ctx, m.Runner, "ip addresses", m.Binary, "ips", "list")
	if err != nil {
		return nil, fmt.Errorf("failed to list IPs: %w", err)
	}
	fmt.Fprint(m.Out, out)
	if strings.Contains(out, "dedicated") && strings.Contains(out, "v4") {
		report.DedicatedIPv4 = true
		report.warn(m.Out, "A dedicated IPv4 address is allocated and costs $2/month. Release it with 'flyctl ips release <ip>'.")
	}

	header(m.Out, "Volumes")
	out, err = runStep(ctx, m.Runner, "volumes", m.Binary, "volumes", "list")
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes: %w", err)
	}
	fmt.Fprint(m.Out, out)
	report.HasVolumes = strings.TrimSpace(out) != "" && !strings.Contains(out, "No volumes")
	if report.HasVolumes {
		fmt.Fprintln(m.Out, "ℹ️  The free tier includes 3GB of persistent volume storage.")
	}

	header(m.Out, "fly.toml cost settings")
	costWarnings := app.CostWarnings()
	for _, w := range costWarnings {
		report.warn(m.Out, w)
	}
	if len(costWarnings) == 0 {
		fmt.Fprintln(m.Out, "✅ fly.toml is configured for the free tier")
	}

	logger.Info("Usage check finished",
		zap.String("app", app.Name),
		zap.Int("running_machines", report.RunningMachines),
		zap.Int("warnings", len(report.Warnings)),
	)

	m.printFreeTier()
	return report, nil
}

func (r *UsageReport) warn(out io.Writer, msg string) {
	r.Warnings = append(r.Warnings, msg)
	logger.Warn("Fly.io cost warning", zap.String("warning", msg))
	fmt.Fprintf(out, "⚠️  %s\n", msg)
}

func (m *Monitor) printFreeTier() {
	header(m.Out, "Free tier allowance")
	fmt.Fprintln(m.Out, "- Up to 3 shared-cpu-1x 256MB VMs")
	fmt.Fprintln(m.Out, "- 3GB persistent volume storage")
	fmt.Fprintln(m.Out, "- 160GB outbound data transfer")
	fmt.Fprintln(m.Out, "")
	fmt.Fprintln(m.Out, "Check the billing dashboard at https://fly.io/dashboard for actual charges.")
}
