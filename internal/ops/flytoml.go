package ops

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// FlyApp is the part of fly.toml the ops tasks care about.
type FlyApp struct {
	Name string
	v    *viper.Viper
}

// LoadFlyConfig parses the fly.toml at path.
func LoadFlyConfig(path string) (*FlyApp, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	name := v.GetString("app")
	if name == "" {
		return nil, fmt.Errorf("no app name in %s", path)
	}
	return &FlyApp{Name: name, v: v}, nil
}

func (a *FlyApp) URL() string {
	return fmt.Sprintf("https://%s.fly.dev", a.Name)
}

// CostWarnings lists settings that keep the app outside the free tier.
func (a *FlyApp) CostWarnings() []string {
	var warnings []string

	if a.autoStopDisabled() {
		warnings = append(warnings,
			"auto_stop_machines is disabled. Enable it to automatically stop idle machines:\n"+
				"   Update fly.toml to set auto_stop_machines = true")
	}

	if !a.scaleToZero() {
		warnings = append(warnings,
			"min_machines_running is not set to 0. Setting it to 0 allows all machines to stop when idle:\n"+
				"   Update fly.toml to set min_machines_running = 0")
	}

	if !a.sharedCPU() {
		warnings = append(warnings,
			"You may not be using shared CPU VMs. The free tier only includes shared CPU VMs.\n"+
				"   Update fly.toml to use shared-cpu-1x or cpu_kind = \"shared\"")
	}

	return warnings
}

func (a *FlyApp) autoStopDisabled() bool {
	raw := a.v.Get("http_service.auto_stop_machines")
	switch val := raw.(type) {
	case bool:
		return !val
	case string:
		s := strings.ToLower(val)
		return s == "off" || s == "false"
	default:
		return false
	}
}

// scaleToZero reports whether min_machines_running is 0, set either in the
// http_service section or at the top level.
func (a *FlyApp) scaleToZero() bool {
	for _, key := range []string{"http_service.min_machines_running", "min_machines_running"} {
		if a.v.IsSet(key) {
			return a.v.GetInt(key) == 0
		}
	}
	return false
}

func (a *FlyApp) sharedCPU() bool {
	for _, vm := range a.vmSections() {
		if size, _ := vm["size"].(string); strings.HasPrefix(size, "shared-cpu") {
			return true
		}
		if kind, _ := vm["cpu_kind"].(string); kind == "shared" {
			return true
		}
	}
	return false
}

// vmSections returns the VM definitions whether fly.toml uses a single
// [vm] table or an [[vm]] array.
func (a *FlyApp) vmSections() []map[string]interface{} {
	switch raw := a.v.Get("vm").(type) {
	case map[string]interface{}:
		return []map[string]interface{}{raw}
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(raw))
		for _, item := range raw {
			if vm, ok := item.(map[string]interface{}); ok {
				out = append(out, vm)
			}
		}
		return out
	case []map[string]interface{}:
		return raw
	default:
		return nil
	}
}
