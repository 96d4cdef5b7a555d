// Package config loads the VM's resource knobs (spec.md §5 "Resource
// policy": stack size, call-depth limit, GC threshold, heap cap) from a
// YAML file via gopkg.in/yaml.v3, leaving only the handful of CLI
// overrides in SPEC_FULL.md §6.4 to flag parsing. The teacher's own CLIs
// have no config-file layer (see DESIGN.md).
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"derkjs/pkg/vm"
)

// VM is the YAML-serializable form of vm.Config plus a Preloads list.
// Preloads is parsed but not consulted: ToVMConfig drops it, cmd/derkjs
// does not read it, and natives.Install always installs every native.
type VM struct {
	StackSize      int      `yaml:"stack_size"`
	CallDepthLimit int      `yaml:"call_depth_limit"`
	GCThreshold    int      `yaml:"gc_threshold"`
	HeapCap        int      `yaml:"heap_cap"`
	Preloads       []string `yaml:"preloads"`
}

// Default returns the YAML-shaped defaults mirroring vm.DefaultConfig.
func Default() VM {
	d := vm.DefaultConfig()
	return VM{StackSize: d.StackSize, CallDepthLimit: d.CallDepthLimit, GCThreshold: d.GCThreshold, HeapCap: d.HeapCap}
}

// Load reads and parses a YAML config file, filling any zero field from
// Default() first so a partial file only overrides what it names.
func Load(path string) (VM, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ToVMConfig converts the loaded YAML config into the runtime's own
// vm.Config, the only shape pkg/vm actually depends on.
func (c VM) ToVMConfig() vm.Config {
	return vm.Config{
		StackSize:      c.StackSize,
		CallDepthLimit: c.CallDepthLimit,
		GCThreshold:    c.GCThreshold,
		HeapCap:        c.HeapCap,
	}
}
