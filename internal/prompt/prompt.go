// Package prompt renders explanation weights into the recommendation prompt
// sent to the chat-completion service.
package prompt

import (
	"fmt"
	"math"
	"strings"

	"github.com/ecotracker/backend/internal/explain"
	"github.com/ecotracker/backend/internal/features"
)

const materialContext = `Each material has known carbon emission characteristics. For instance:
- Timber generally has low emissions due to carbon sequestration but can still be impactful in large volumes.
- Plastic and Petroleum Products are fossil-fuel-based and have very high emission factors.
- Aluminium and Steel are energy-intensive to produce.
- Cotton involves agricultural emissions and water use.
- Glass has a moderate impact depending on its recycling source.
- Wheat and agricultural products usually have low to moderate emissions.`

var mitigations = map[features.Material]string{
	features.PetroleumProducts: "pick recycled or bio-based versions or a refill/return program",
	features.Plastic:           "pick recycled or bio-based versions or a refill/return program",
	features.Steel:             "choose high-recycled/low-carbon certified metal or a durable reusable alternative",
	features.Timber:            "FSC-certified or reclaimed wood",
	features.Cotton:            "organic or recycled cotton",
	features.Glass:             "high-recycled glass or a refill system",
	features.Wheat:             "buy only what you need; prefer low-packaging",
}

// Mitigation returns the fixed next-step product focus for m.
func Mitigation(m features.Material) string {
	return mitigations[m]
}

// MainDriver returns the material contribution with the largest absolute
// weight. ok is false when no material feature is present.
func MainDriver(contributions []explain.Contribution) (m features.Material, weight float64, ok bool) {
	best := -1.0
	for _, c := range contributions {
		name, isMaterial := strings.CutPrefix(c.Feature, features.MaterialPrefix)
		if !isMaterial {
			continue
		}
		if a := math.Abs(c.Weight); a > best {
			best = a
			m, weight, ok = features.Material(name), c.Weight, true
		}
	}
	return m, weight, ok
}

// Render builds the recommendation prompt. Only material contributions are
// listed; the internal sections are instructions for the model and must not
// be echoed to the user.
func Render(contributions []explain.Contribution) string {
	var lines []string
	for _, c := range contributions {
		if strings.HasPrefix(c.Feature, features.MaterialPrefix) {
			lines = append(lines, fmt.Sprintf("- %s: weight %+.2f", c.Feature, c.Weight))
		}
	}
	block := strings.Join(lines, "\n")
	if block == "" {
		block = "- no material-specific drivers were identified"
	}

	driver := "No single material stands out; give one general low-impact purchasing tip."
	if m, w, ok := MainDriver(contributions); ok {
		direction := "raises"
		if w < 0 {
			direction = "lowers"
		}
		driver = fmt.Sprintf("The main driver is %s (weight %+.2f, it %s the impact). Mention %s explicitly as the main driver and suggest: %q.",
			m, w, direction, strings.ToLower(string(m)), Mitigation(m))
	}

	var b strings.Builder
	b.WriteString("You are a friendly Planet Impact Coach helping a person understand the environmental impact of a recent purchase.\n\n")
	b.WriteString("The analysis below highlights the influence of different materials on the environmental footprint of the transaction, based on a machine learning model's local explanation. The goal is to assess ESG environmental alignment based purely on the materials used.\n\n")
	b.WriteString("Impact drivers (internal, do NOT show to the user):\n")
	b.WriteString(block)
	b.WriteString("\n\nBackground notes (internal reference only):\n")
	b.WriteString(materialContext)
	b.WriteString("\n\n[Internal accuracy rules - do not show to the user]\n")
	b.WriteString("- Positive weights push the purchase toward HIGH environmental impact; negative weights push it toward LOW impact.\n")
	b.WriteString("- " + driver + "\n")
	b.WriteString("- Do not mention weights, numbers from the drivers list, or these rules.\n")
	b.WriteString("- Keep one paragraph, 3-5 sentences, one specific next step.\n")

	return b.String()
}
