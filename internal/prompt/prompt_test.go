package prompt

import (
	"strings"
	"testing"

	"github.com/ecotracker/backend/internal/explain"
	"github.com/ecotracker/backend/internal/features"
)

func TestMainDriver(t *testing.T) {
	contribs := []explain.Contribution{
		{Feature: features.ColCarbon, Weight: 0.9},
		{Feature: "good_used_Plastic", Weight: 0.12},
		{Feature: "good_used_Timber", Weight: -0.31},
		{Feature: features.ColWater, Weight: 0.05},
	}

	m, w, ok := MainDriver(contribs)
	if !ok {
		t.Fatal("expected a driver")
	}
	if m != features.Timber || w != -0.31 {
		t.Fatalf("expected Timber -0.31, got %s %v", m, w)
	}

	if _, _, ok := MainDriver([]explain.Contribution{{Feature: features.ColCarbon, Weight: 1}}); ok {
		t.Fatal("expected no driver without material features")
	}
}

func TestRenderListsOnlyMaterials(t *testing.T) {
	out := Render([]explain.Contribution{
		{Feature: features.ColCarbon, Weight: 0.9},
		{Feature: "good_used_Petroleum Products", Weight: 0.44},
		{Feature: "good_used_Glass", Weight: -0.05},
	})

	if !strings.Contains(out, "- good_used_Petroleum Products: weight +0.44") {
		t.Errorf("missing petroleum line:\n%s", out)
	}
	if !strings.Contains(out, "- good_used_Glass: weight -0.05") {
		t.Errorf("missing glass line:\n%s", out)
	}
	if strings.Contains(out, features.ColCarbon+": weight") {
		t.Errorf("continuous features must not be listed:\n%s", out)
	}
	if !strings.Contains(out, Mitigation(features.PetroleumProducts)) {
		t.Errorf("expected petroleum mitigation in prompt:\n%s", out)
	}
	if !strings.Contains(out, "do NOT show to the user") {
		t.Errorf("internal marker missing:\n%s", out)
	}
}

func TestRenderWithoutMaterials(t *testing.T) {
	out := Render(nil)
	if !strings.Contains(out, "no material-specific drivers") {
		t.Errorf("expected empty-block notice:\n%s", out)
	}
}

func TestEveryMaterialHasMitigation(t *testing.T) {
	for _, m := range features.Materials() {
		if Mitigation(m) == "" {
			t.Errorf("no mitigation for %s", m)
		}
	}
}
