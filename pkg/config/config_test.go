package config_test

import (
	"os"
	"strings"
	"testing"

	"github.com/jobpower/powerbalancer/pkg/config"
)

func leafYAML() string {
	return `
role: leaf
tree:
  listen: "127.0.0.1:7001"
  parent: "http://127.0.0.1:7000"
platform:
  mode: noop
  numPackages: 2
  minPowerPerPackage: 50
  maxPowerPerPackage: 200
`
}

func TestLoad_ValidConfig(t *testing.T) {
	tmp, err := os.CreateTemp("", "valid-config*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmp.Name())
	tmp.WriteString(leafYAML())
	tmp.Close()

	cfg, err := config.Load(tmp.Name())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Role != config.RoleLeaf {
		t.Errorf("expected role leaf, got %v", cfg.Role)
	}
	if cfg.Platform.NumPackages != 2 {
		t.Errorf("expected 2 packages, got %d", cfg.Platform.NumPackages)
	}
	if cfg.WaitIntervalSec != 0.005 {
		t.Errorf("expected default waitIntervalSec 0.005, got %v", cfg.WaitIntervalSec)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got none")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmp, err := os.CreateTemp("", "invalid-config*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmp.Name())
	tmp.WriteString("{this: is, not: valid yaml")
	tmp.Close()

	_, err = config.Load(tmp.Name())
	if err == nil {
		t.Fatal("expected YAML unmarshal error, got none")
	}
	if !strings.Contains(err.Error(), "yaml") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestApplyDefaultsAndValidate_RequiresRole(t *testing.T) {
	cfg := &config.Config{}
	if err := cfg.ApplyDefaultsAndValidate(); err == nil {
		t.Fatal("expected error for missing role, got none")
	}
}

func TestApplyDefaultsAndValidate_LeafRequiresParent(t *testing.T) {
	cfg := &config.Config{Role: config.RoleLeaf}
	if err := cfg.ApplyDefaultsAndValidate(); err == nil {
		t.Fatal("expected error for missing tree.parent, got none")
	}
}

func TestApplyDefaultsAndValidate_RootRequiresNumNode(t *testing.T) {
	cfg := &config.Config{
		Role: config.RoleRoot,
		Tree: config.TreeConfig{Listen: "127.0.0.1:7000", Children: []string{"http://127.0.0.1:7001"}},
	}
	if err := cfg.ApplyDefaultsAndValidate(); err == nil {
		t.Fatal("expected error for missing job.numNode, got none")
	}
}

func TestApplyDefaultsAndValidate_DefaultsApplied(t *testing.T) {
	cfg := &config.Config{
		Role: config.RoleRoot,
		Tree: config.TreeConfig{Listen: "127.0.0.1:7000", Children: []string{"http://127.0.0.1:7001"}},
		Job:  config.JobConfig{NumNode: 3},
	}
	if err := cfg.ApplyDefaultsAndValidate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Balancer.StabilityFactor != 2 {
		t.Errorf("expected default stabilityFactor 2, got %v", cfg.Balancer.StabilityFactor)
	}
	if cfg.Balancer.MinNumSamples != 5 {
		t.Errorf("expected default minNumSamples 5, got %d", cfg.Balancer.MinNumSamples)
	}
	if cfg.Balancer.ReductionStepFraction != 0.1 {
		t.Errorf("expected default reductionStepFraction 0.1, got %v", cfg.Balancer.ReductionStepFraction)
	}
	if cfg.MetricsListen != ":9090" {
		t.Errorf("expected default metrics listen :9090, got %v", cfg.MetricsListen)
	}
}

func TestApplyDefaultsAndValidate_RejectsBadReductionFraction(t *testing.T) {
	cfg := &config.Config{
		Role:     config.RoleRoot,
		Tree:     config.TreeConfig{Listen: "127.0.0.1:7000", Children: []string{"http://127.0.0.1:7001"}},
		Job:      config.JobConfig{NumNode: 1},
		Balancer: config.BalancerConfig{ReductionStepFraction: 1.5},
	}
	if err := cfg.ApplyDefaultsAndValidate(); err == nil {
		t.Fatal("expected error for out-of-range reductionStepFraction, got none")
	}
}
