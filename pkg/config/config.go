// Package config loads an agent process's YAML configuration: its position
// in the balancing tree, the platform and transport facades it should
// construct, and the tunables from spec.md §9. It follows the
// cluster-bare-autoscaler shape of Load (read + unmarshal) followed by
// ApplyDefaultsAndValidate (fill in defaults, then reject anything still
// out of range).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Role selects which of the three role state machines this node runs.
type Role string

const (
	RoleLeaf         Role = "leaf"
	RoleIntermediate Role = "intermediate"
	RoleRoot         Role = "root"
)

// TreeConfig addresses this node's position among its tree neighbors. For
// RoleLeaf and RoleIntermediate, Parent is the HTTP base URL of the node
// above; it is empty for RoleRoot. Children lists the HTTP base URLs of
// direct children, in a fixed order shared by every aggregation call.
type TreeConfig struct {
	Listen string `yaml:"listen"`
	// Level is this node's position in the tree (0 at the root), used for
	// trace/metric labels and, when Discovery is disabled, to know which
	// level's children to expect at startup.
	Level    int      `yaml:"level"`
	Parent   string   `yaml:"parent,omitempty"`
	Children []string `yaml:"children,omitempty"`

	// Discovery optionally replaces a static Children/Parent list with a
	// Kubernetes Node listing (pkg/topology). When Enabled, Children and
	// Parent above are used only as a fallback if discovery fails.
	Discovery TopologyDiscoveryConfig `yaml:"discovery,omitempty"`
}

// TopologyDiscoveryConfig is the ambient, non-core convenience described in
// SPEC_FULL.md §6: resolving tree neighbors from Kubernetes Node labels
// instead of a static address book. It never influences the balancing
// algorithm, only how the address book is assembled before the core starts.
type TopologyDiscoveryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	JobLabel    string `yaml:"jobLabel"`
	LevelLabel  string `yaml:"levelLabel"`
	AddrLabel   string `yaml:"addrLabel"`
	ParentLevel int    `yaml:"parentLevel"`
	OwnLevel    int    `yaml:"ownLevel"`
}

// PlatformConfig selects and parameterizes the signal/control facade
// (pkg/platform.Factory).
type PlatformConfig struct {
	Mode    string        `yaml:"mode"` // "noop" or "http"
	BaseURL string        `yaml:"baseURL,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// NumPackages is the number of power domains/packages on this node.
	// Leaf-only.
	NumPackages int `yaml:"numPackages,omitempty"`

	// Bounds stand in for POWER_PACKAGE_MIN/MAX/TDP/TIME_WINDOW per
	// package. In noop mode the agent uses these values directly (leaf
	// floors, the root's ValidationBounds, the measurement window); in
	// http mode they are not consulted and all four are read from the
	// sidecar at init (see platformBounds in main.go).
	MinPowerPerPackage float64 `yaml:"minPowerPerPackage"`
	MaxPowerPerPackage float64 `yaml:"maxPowerPerPackage"`
	TDPPerPackage      float64 `yaml:"tdpPerPackage"`
	TimeWindowSeconds  float64 `yaml:"timeWindowSeconds"`
}

// BalancerConfig carries the four tunables of spec.md §9's configuration
// surface.
type BalancerConfig struct {
	StabilityFactor       float64 `yaml:"stabilityFactor"`
	MinNumSamples         int     `yaml:"minNumSamples"`
	ReductionStepFraction float64 `yaml:"reductionStepFraction"`
}

// JobConfig carries the job-wide parameters only the root needs: how many
// leaves participate (for slack division) and the initial job-level power
// cap to inject on startup.
type JobConfig struct {
	NumNode        int     `yaml:"numNode"`
	InitialPowerCap float64 `yaml:"initialPowerCap"`

	// ControlListen, if set, runs an HTTP endpoint (pkg/jobctl) a running
	// root accepts fresh job-level power caps on, independent of the tree
	// transport's own listener.
	ControlListen string `yaml:"controlListen,omitempty"`
}

// Config is one agent process's full configuration.
type Config struct {
	LogLevel string `yaml:"logLevel"`

	Role Role       `yaml:"role"`
	Tree TreeConfig `yaml:"tree"`

	WaitIntervalSec float64 `yaml:"waitIntervalSec"`

	Platform PlatformConfig `yaml:"platform"`
	Balancer BalancerConfig `yaml:"balancer"`
	Job      JobConfig      `yaml:"job,omitempty"`

	MetricsListen string `yaml:"metricsListen,omitempty"`
	HealthListen  string `yaml:"healthListen,omitempty"`
	TracingService string `yaml:"tracingService,omitempty"`

	DryRun bool `yaml:"dryRun"`
}

// Load reads path, unmarshals it as YAML, and applies defaults/validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing yaml config: %w", err)
	}

	if err := cfg.ApplyDefaultsAndValidate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaultsAndValidate fills in the tunables spec.md §9 leaves
// configurable and rejects a config that cannot build a valid agent.
func (cfg *Config) ApplyDefaultsAndValidate() error {
	switch cfg.Role {
	case RoleLeaf, RoleIntermediate, RoleRoot:
	case "":
		return fmt.Errorf("role is required (leaf, intermediate, or root)")
	default:
		return fmt.Errorf("unknown role %q", cfg.Role)
	}

	if cfg.Role != RoleRoot && cfg.Tree.Parent == "" && !cfg.Tree.Discovery.Enabled {
		return fmt.Errorf("tree.parent is required for non-root roles")
	}
	if cfg.Role != RoleLeaf && len(cfg.Tree.Children) == 0 && !cfg.Tree.Discovery.Enabled {
		return fmt.Errorf("tree.children is required for non-leaf roles")
	}

	if cfg.WaitIntervalSec == 0 {
		cfg.WaitIntervalSec = 0.005 // spec.md §5: ≈5ms control cadence.
	}
	if cfg.WaitIntervalSec < 0 {
		return fmt.Errorf("waitIntervalSec must be positive, got %v", cfg.WaitIntervalSec)
	}

	if cfg.Platform.Mode == "" {
		cfg.Platform.Mode = "noop"
	}
	if cfg.Platform.Mode != "noop" && cfg.Platform.Mode != "http" {
		return fmt.Errorf("platform.mode must be \"noop\" or \"http\", got %q", cfg.Platform.Mode)
	}
	if cfg.Platform.Mode == "http" && cfg.Platform.BaseURL == "" {
		return fmt.Errorf("platform.baseURL is required when platform.mode is \"http\"")
	}
	if cfg.Platform.Timeout == 0 {
		cfg.Platform.Timeout = 5 * time.Second
	}
	if cfg.Role == RoleLeaf && cfg.Platform.NumPackages <= 0 {
		cfg.Platform.NumPackages = 1
	}
	if cfg.Platform.MaxPowerPerPackage > 0 && cfg.Platform.MinPowerPerPackage > cfg.Platform.MaxPowerPerPackage {
		return fmt.Errorf("platform.minPowerPerPackage (%v) exceeds platform.maxPowerPerPackage (%v)",
			cfg.Platform.MinPowerPerPackage, cfg.Platform.MaxPowerPerPackage)
	}

	if cfg.Balancer.StabilityFactor == 0 {
		cfg.Balancer.StabilityFactor = 2
	}
	if cfg.Balancer.StabilityFactor < 1 {
		return fmt.Errorf("balancer.stabilityFactor must be >= 1, got %v", cfg.Balancer.StabilityFactor)
	}
	if cfg.Balancer.MinNumSamples == 0 {
		cfg.Balancer.MinNumSamples = 5
	}
	if cfg.Balancer.MinNumSamples < 1 {
		return fmt.Errorf("balancer.minNumSamples must be >= 1, got %d", cfg.Balancer.MinNumSamples)
	}
	if cfg.Balancer.ReductionStepFraction == 0 {
		cfg.Balancer.ReductionStepFraction = 0.1
	}
	if cfg.Balancer.ReductionStepFraction <= 0 || cfg.Balancer.ReductionStepFraction >= 1 {
		return fmt.Errorf("balancer.reductionStepFraction must be in (0,1), got %v", cfg.Balancer.ReductionStepFraction)
	}

	if cfg.Role == RoleRoot && cfg.Job.NumNode <= 0 {
		return fmt.Errorf("job.numNode must be > 0 for the root")
	}

	if cfg.MetricsListen == "" {
		cfg.MetricsListen = ":9090"
	}
	if cfg.HealthListen == "" {
		cfg.HealthListen = ":9091"
	}
	if cfg.TracingService == "" {
		cfg.TracingService = "powerbalancer-agent"
	}

	return nil
}

// MeasurementWindow derives the platform measurement-window input to the
// balancer's tolerance calculation (spec.md §4.5) from the POWER_PACKAGE_TIME_WINDOW
// reading resolved at init (read from the facade in http mode, from config
// in noop mode; see platformBounds in main.go), defaulting to 1s when the
// platform didn't report one (e.g. in a minimal noop setup).
func (cfg *Config) MeasurementWindow(timeWindow float64) float64 {
	if timeWindow > 0 {
		return timeWindow
	}
	return 1.0
}
