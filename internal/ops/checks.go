package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// SamplePrediction is the payload the live checks send to /predict.
var SamplePrediction = map[string]interface{}{
	"good_used":                  "Plastic",
	"quantity_used (tons)":       2.5,
	"carbon_emission (tons CO2)": 1.5,
	"water_usage (liters)":       500,
	"waste_generated (tons)":     0.5,
}

// Checker exercises a running deployment over HTTP.
type Checker struct {
	Out     io.Writer
	Timeout time.Duration
	Now     func() time.Time
}

func NewChecker(out io.Writer) *Checker {
	return &Checker{Out: out, Timeout: 30 * time.Second, Now: time.Now}
}

// HealthCheck verifies the transactions and prediction endpoints.
func (c *Checker) HealthCheck(ctx context.Context, baseURL string) error {
	baseURL = strings.TrimRight(baseURL, "/")
	header(c.Out, "Health check: "+baseURL)

	var errs []error
	errs = append(errs, c.step("GET /transactions", func() error {
		body, err := c.get(ctx, baseURL+"/transactions")
		if err != nil {
			return err
		}
		return requireKeys(body, "transactions", "chartData")
	}))
	errs = append(errs, c.step("POST /predict", func() error {
		body, err := c.post(ctx, baseURL+"/predict", SamplePrediction)
		if err != nil {
			return err
		}
		return requireKeys(body, "prediction", "recommendation")
	}))

	return c.summary(errs)
}

// SmokeTest walks every public endpoint once, including a transaction write.
func (c *Checker) SmokeTest(ctx context.Context, baseURL string) error {
	baseURL = strings.TrimRight(baseURL, "/")
	header(c.Out, "Smoke test: "+baseURL)

	var errs []error
	errs = append(errs, c.step("GET /transactions", func() error {
		body, err := c.get(ctx, baseURL+"/transactions")
		if err != nil {
			return err
		}
		return requireKeys(body, "transactions", "chartData")
	}))
	errs = append(errs, c.step("POST /transactions", func() error {
		body, err := c.post(ctx, baseURL+"/transactions", map[string]interface{}{
			"description": "Smoke test purchase",
			"amount":      12.34,
			"category":    "Glass",
			"date":        c.Now().Format("2006-01-02"),
		})
		if err != nil {
			return err
		}
		return requireKeys(body, "id", "carbon", "impact")
	}))
	errs = append(errs, c.step("GET /insights", func() error {
		body, err := c.get(ctx, baseURL+"/insights")
		if err != nil {
			return err
		}
		return requireKeys(body, "insights", "messages")
	}))
	errs = append(errs, c.step("POST /predict", func() error {
		body, err := c.post(ctx, baseURL+"/predict", SamplePrediction)
		if err != nil {
			return err
		}
		return requireKeys(body, "prediction", "lime_features", "recommendation")
	}))

	return c.summary(errs)
}

func (c *Checker) step(name string, fn func() error) error {
	if err := fn(); err != nil {
		fmt.Fprintf(c.Out, "❌ %s: %v\n", name, err)
		return fmt.Errorf("%s: %w", name, err)
	}
	fmt.Fprintf(c.Out, "✅ %s\n", name)
	return nil
}

func (c *Checker) summary(errs []error) error {
	err := errors.Join(errs...)
	if err != nil {
		fmt.Fprintln(c.Out, "\nSome checks failed")
		return err
	}
	fmt.Fprintln(c.Out, "\nAll checks passed")
	return nil
}

func (c *Checker) get(ctx context.Context, url string) (map[string]json.RawMessage, error) {
	return c.do(ctx, fiber.Get(url))
}

func (c *Checker) post(ctx context.Context, url string, payload interface{}) (map[string]json.RawMessage, error) {
	return c.do(ctx, fiber.Post(url).JSON(payload))
}

func (c *Checker) do(ctx context.Context, agent *fiber.Agent) (map[string]json.RawMessage, error) {
	timeout := c.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(agent)
		return nil, err
	}

	code, body, errs := agent.Timeout(timeout).Bytes()
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if code != fiber.StatusOK && code != fiber.StatusCreated {
		return nil, fmt.Errorf("unexpected status %d: %s", code, truncate(string(body), 200))
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	return out, nil
}

func requireKeys(body map[string]json.RawMessage, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if _, ok := body[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("response missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
