package ops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ecotracker/backend/pkg/logger"
)

// ErrNotLoggedIn is returned when flyctl has no authenticated session.
var ErrNotLoggedIn = errors.New("not logged in to Fly.io, run 'flyctl auth login'")

type DeployOptions struct {
	SkipChecks bool
	// TestOnly skips the deploy and only prints the app endpoints.
	TestOnly bool
}

// Deployer drives flyctl to ship the API and reports the QR code endpoints.
type Deployer struct {
	Runner     Runner
	Out        io.Writer
	Binary     string
	ConfigPath string
	// Settle is how long to wait after a deploy before checking status.
	Settle time.Duration
	Sleep  func(context.Context, time.Duration) error
}

func NewDeployer(runner Runner, out io.Writer, binary, configPath string) *Deployer {
	return &Deployer{
		Runner:     runner,
		Out:        out,
		Binary:     binary,
		ConfigPath: configPath,
		Settle:     10 * time.Second,
		Sleep:      sleepCtx,
	}
}

func (d *Deployer) Run(ctx context.Context, opts DeployOptions) error {
	if !opts.SkipChecks {
		if err := d.CheckDependencies(ctx); err != nil {
			return err
		}
		if err := d.CheckAuth(ctx); err != nil {
			return err
		}
	}

	if !opts.TestOnly {
		if err := d.Deploy(ctx); err != nil {
			return err
		}
	}

	app, err := LoadFlyConfig(d.ConfigPath)
	if err != nil {
		return err
	}
	logger.Info("Deployment finished",
		zap.String("app", app.Name),
		zap.Bool("test_only", opts.TestOnly),
	)
	d.printEndpoints(app)
	return nil
}

// CheckDependencies verifies flyctl and git are installed.
func (d *Deployer) CheckDependencies(ctx context.Context) error {
	header(d.Out, "Checking dependencies")

	out, err := runStep(ctx, d.Runner, "check flyctl", d.Binary, "version")
	if err != nil {
		return fmt.Errorf("flyctl is not installed: %w", err)
	}
	fmt.Fprintf(d.Out, "✅ flyctl is installed: %s\n", strings.TrimSpace(out))

	out, err = runStep(ctx, d.Runner, "check git", "git", "--version")
	if err != nil {
		return fmt.Errorf("git is not installed: %w", err)
	}
	fmt.Fprintf(d.Out, "✅ git is installed: %s\n", strings.TrimSpace(out))
	return nil
}

func (d *Deployer) CheckAuth(ctx context.Context) error {
	header(d.Out, "Checking Fly.io authentication")

	out, err := runStep(ctx, d.Runner, "check auth", d.Binary, "auth", "whoami")
	if err != nil || strings.Contains(strings.ToLower(out), "not logged in") {
		logger.Warn("Fly.io session missing")
		return ErrNotLoggedIn
	}
	fmt.Fprintf(d.Out, "✅ Logged in to Fly.io as: %s\n", strings.TrimSpace(out))
	return nil
}

func (d *Deployer) Deploy(ctx context.Context) error {
	header(d.Out, "Deploying to Fly.io")

	// The app may not exist yet, so a failing status is only informational.
	if out, err := runStep(ctx, d.Runner, "status before deploy", d.Binary, "status"); err != nil {
		fmt.Fprintln(d.Out, "ℹ️  No existing deployment found, a new app will be created")
	} else {
		fmt.Fprint(d.Out, out)
	}

	out, err := runStep(ctx, d.Runner, "deploy", d.Binary, "deploy", "--config", d.ConfigPath)
	if err != nil {
		return fmt.Errorf("deploy failed: %w", err)
	}
	fmt.Fprint(d.Out, out)
	fmt.Fprintln(d.Out, "✅ Deployment command completed")

	fmt.Fprintf(d.Out, "Waiting %s for the deployment to settle...\n", d.Settle)
	if err := d.Sleep(ctx, d.Settle); err != nil {
		return err
	}

	out, err = runStep(ctx, d.Runner, "status after deploy", d.Binary, "status")
	if err != nil {
		return fmt.Errorf("status after deploy failed: %w", err)
	}
	fmt.Fprint(d.Out, out)
	return nil
}

func (d *Deployer) printEndpoints(app *FlyApp) {
	header(d.Out, "QR code endpoints")
	fmt.Fprintf(d.Out, "App URL:          %s\n", app.URL())
	fmt.Fprintf(d.Out, "QR code image:    %s/qrcode\n", app.URL())
	fmt.Fprintf(d.Out, "QR code HTML:     %s/qrcode-html\n", app.URL())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
