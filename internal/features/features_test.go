package features

import (
	"errors"
	"testing"

	"github.com/ecotracker/backend/internal/apperr"
)

func ptr[T any](v T) *T { return &v }

func validInput(material string) Input {
	return Input{
		GoodUsed:       ptr(material),
		QuantityUsed:   ptr(2.5),
		CarbonEmission: ptr(1.5),
		WaterUsage:     ptr(500.0),
		WasteGenerated: ptr(0.5),
	}
}

func TestColumnsOrder(t *testing.T) {
	want := []string{
		"quantity_used (tons)", "carbon_emission (tons CO2)", "water_usage (liters)", "waste_generated (tons)",
		"good_used_Cotton", "good_used_Glass", "good_used_Petroleum Products",
		"good_used_Plastic", "good_used_Steel", "good_used_Timber", "good_used_Wheat",
	}
	got := Columns()
	if len(got) != len(want) {
		t.Fatalf("expected %d columns, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestNormalizeOneHot(t *testing.T) {
	n := NewNormalizer(false)

	for _, m := range Materials() {
		t.Run(string(m), func(t *testing.T) {
			v, err := n.Normalize(validInput(string(m)))
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}

			ones := 0
			for _, mm := range Materials() {
				val, ok := v.Get(mm.Column())
				if !ok {
					t.Fatalf("missing column %s", mm.Column())
				}
				if val == 1 {
					ones++
					if mm != m {
						t.Errorf("expected %s to be hot, got %s", m, mm)
					}
				}
			}
			if ones != 1 {
				t.Errorf("expected exactly one hot column, got %d", ones)
			}

			if q, _ := v.Get(ColQuantity); q != 2.5 {
				t.Errorf("quantity not copied through: %v", q)
			}
			if w, _ := v.Get(ColWater); w != 500 {
				t.Errorf("water usage not copied through: %v", w)
			}
		})
	}
}

func TestNormalizeUnknownMaterial(t *testing.T) {
	v, err := NewNormalizer(false).Normalize(validInput("Gold"))
	if err != nil {
		t.Fatalf("lenient normalizer should accept unknown material: %v", err)
	}
	for _, m := range Materials() {
		if val, _ := v.Get(m.Column()); val != 0 {
			t.Errorf("expected %s to be 0, got %v", m.Column(), val)
		}
	}

	_, err = NewNormalizer(true).Normalize(validInput("Gold"))
	if !errors.Is(err, apperr.ErrUnknownMaterial) {
		t.Fatalf("expected ErrUnknownMaterial, got %v", err)
	}
}

func TestNormalizeMissingFields(t *testing.T) {
	n := NewNormalizer(false)

	in := validInput("Glass")
	in.WaterUsage = nil
	if _, err := n.Normalize(in); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing water usage, got %v", err)
	}

	in = validInput("Glass")
	in.GoodUsed = nil
	if _, err := n.Normalize(in); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing good_used, got %v", err)
	}
}
