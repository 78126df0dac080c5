// Command agentd runs one node's position in the power-balancing tree: a
// leaf drives its local PowerBalancer against the platform facade, an
// intermediate fans policies down and aggregates samples up, and the root
// additionally closes the loop with the per-step policy-update rule and
// accepts job-level power-cap injections. Grounded on the teacher's
// main.go: load config, wire metrics/health, then drive a loop forever.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/jobpower/powerbalancer/pkg/agent"
	"github.com/jobpower/powerbalancer/pkg/balancer"
	"github.com/jobpower/powerbalancer/pkg/config"
	"github.com/jobpower/powerbalancer/pkg/controller"
	"github.com/jobpower/powerbalancer/pkg/health"
	"github.com/jobpower/powerbalancer/pkg/jobctl"
	"github.com/jobpower/powerbalancer/pkg/kubeclient"
	"github.com/jobpower/powerbalancer/pkg/metrics"
	"github.com/jobpower/powerbalancer/pkg/platform"
	"github.com/jobpower/powerbalancer/pkg/role"
	"github.com/jobpower/powerbalancer/pkg/topology"
	"github.com/jobpower/powerbalancer/pkg/tracing"
	"github.com/jobpower/powerbalancer/pkg/transport"
	"github.com/jobpower/powerbalancer/pkg/vector"
)

func main() {
	klog.InitFlags(nil)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	configPath := pflag.String("config", "./config.yaml", "path to agent config file")
	jobID := pflag.String("job-id", "", "job identifier, required when tree.discovery.enabled is true")
	pflag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, *jobID); err != nil {
		slog.Error("agentd exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, jobID string) error {
	metrics.Serve(cfg.MetricsListen)

	if err := tracing.Init(cfg.TracingService); err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer tracing.Shutdown(context.Background())

	parentURL, childURLs, err := resolveTree(context.Background(), cfg, jobID)
	if err != nil {
		return fmt.Errorf("resolving tree neighbors: %w", err)
	}

	tree := transport.NewHTTPTree(cfg.Tree.Listen, parentURL, childURLs, cfg.Platform.Timeout)
	if err := tree.Serve(); err != nil {
		return fmt.Errorf("starting tree listener: %w", err)
	}
	defer tree.Close(context.Background())

	facade, err := platform.NewFacade(platform.FactoryConfig{
		Mode:    platform.Mode(cfg.Platform.Mode),
		BaseURL: cfg.Platform.BaseURL,
		Timeout: cfg.Platform.Timeout,
	})
	if err != nil {
		return fmt.Errorf("building platform facade: %w", err)
	}

	ag, isRoot, err := buildAgent(context.Background(), cfg, facade, tree, len(childURLs))
	if err != nil {
		return fmt.Errorf("building agent: %w", err)
	}

	hc := health.NewHealthCheck(10*time.Second, 30*time.Second)
	healthMux := http.NewServeMux()
	healthMux.Handle("/healthz", hc)
	go http.ListenAndServe(cfg.HealthListen, healthMux)

	opts := []controller.Option{controller.WithHealthCheck(hc)}

	if isRoot {
		inj := controller.NewCapInjector(cfg.Job.InitialPowerCap)
		opts = append(opts, controller.WithCapInjector(inj))
		if cfg.Job.ControlListen != "" {
			go func() {
				srv := &jobctl.Server{Injector: inj}
				if err := http.ListenAndServe(cfg.Job.ControlListen, srv); err != nil {
					slog.Error("jobctl listener stopped", "err", err)
				}
			}()
		}
	}

	waitInterval := time.Duration(cfg.WaitIntervalSec * float64(time.Second))
	level := treeLevel(cfg)
	c := controller.New(string(cfg.Role), level, waitInterval, ag, tree, opts...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return c.Run(ctx)
}

// resolveTree returns the parent base URL and child base URLs for this
// node, either from the static config or (when enabled) Kubernetes Node
// label discovery — a CLI/launcher convenience per SPEC_FULL.md, never
// consulted by the balancing core itself.
func resolveTree(ctx context.Context, cfg *config.Config, jobID string) (string, []string, error) {
	if !cfg.Tree.Discovery.Enabled {
		return cfg.Tree.Parent, cfg.Tree.Children, nil
	}
	if jobID == "" {
		return "", nil, fmt.Errorf("--job-id is required when tree.discovery.enabled is true")
	}

	client, err := kubeclient.Get()
	if err != nil {
		slog.Warn("discovery unavailable, falling back to static tree config", "err", err)
		return cfg.Tree.Parent, cfg.Tree.Children, nil
	}

	d := topology.Discovery{
		JobLabel:    cfg.Tree.Discovery.JobLabel,
		LevelLabel:  cfg.Tree.Discovery.LevelLabel,
		AddrLabel:   cfg.Tree.Discovery.AddrLabel,
		ParentLevel: cfg.Tree.Discovery.ParentLevel,
		OwnLevel:    cfg.Tree.Discovery.OwnLevel,
	}
	neighbors, err := d.Resolve(ctx, client, jobID)
	if err != nil {
		slog.Warn("discovery failed, falling back to static tree config", "err", err)
		return cfg.Tree.Parent, cfg.Tree.Children, nil
	}
	return neighbors.Parent, neighbors.Children, nil
}

func treeLevel(cfg *config.Config) int {
	if cfg.Role == config.RoleRoot {
		return 0
	}
	return cfg.Tree.Level
}

// buildAgent constructs the Agent this process drives, reporting whether it
// is the root (the only role the control loop wires a CapInjector into).
func buildAgent(ctx context.Context, cfg *config.Config, facade platform.Facade, tree *transport.HTTPTree, numChildren int) (*agent.Agent, bool, error) {
	level := treeLevel(cfg)

	bounds, err := platformBounds(ctx, cfg, facade)
	if err != nil {
		return nil, false, err
	}

	switch cfg.Role {
	case config.RoleLeaf:
		floors := make([]float64, cfg.Platform.NumPackages)
		for i := range floors {
			floors[i] = bounds.Min
		}
		balCfg := balancer.Config{
			StabilityFactor:       cfg.Balancer.StabilityFactor,
			MeasurementWindow:     cfg.MeasurementWindow(bounds.TimeWindow),
			MinNumSamples:         cfg.Balancer.MinNumSamples,
			ReductionStepFraction: cfg.Balancer.ReductionStepFraction,
		}
		leaf := role.NewLeaf(facade, balCfg, floors)
		return agent.NewLeafAgent(level, leaf, tree), false, nil
	case config.RoleRoot:
		vb := vector.ValidationBounds{
			MinPowerPerPackage: bounds.Min,
			MaxPowerPerPackage: bounds.Max,
			TDPPerPackage:      bounds.TDP,
			NumPackagesInJob:   cfg.Job.NumNode * cfg.Platform.NumPackages,
		}
		r := role.NewRoot(numChildren, cfg.Job.NumNode, vb)
		return agent.NewRootAgent(level, r, tree), true, nil
	default:
		n := role.NewIntermediate(numChildren)
		return agent.NewIntermediateAgent(level, n, tree), false, nil
	}
}

// platformBounds resolves the four init-time board/package signals spec.md
// §6 requires (POWER_PACKAGE_MIN/MAX/TDP/TIME_WINDOW): read from the
// facade itself in http mode, where platformsim already serves real values
// for exactly these signal names, and taken straight from config in noop
// mode, where there is no simulated platform state behind them to read.
func platformBounds(ctx context.Context, cfg *config.Config, facade platform.Facade) (platform.PackageBounds, error) {
	if platform.Mode(cfg.Platform.Mode) != platform.ModeHTTP {
		return platform.PackageBounds{
			Min:        cfg.Platform.MinPowerPerPackage,
			Max:        cfg.Platform.MaxPowerPerPackage,
			TDP:        cfg.Platform.TDPPerPackage,
			TimeWindow: cfg.Platform.TimeWindowSeconds,
		}, nil
	}
	bounds, err := platform.ReadPackageBounds(ctx, facade, 0)
	if err != nil {
		return platform.PackageBounds{}, fmt.Errorf("reading platform bounds at init: %w", err)
	}
	return bounds, nil
}
