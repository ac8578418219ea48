package validation

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{MaxMessageLength: 20}))
	ok := func(c *fiber.Ctx) error { return c.SendString("ok") }
	app.Post("/conversation", ok)
	app.Post("/transactions", ok)
	app.Post("/predict", ok)
	app.Get("/insights", ok)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, contentType, body string) (int, string) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestValidation(t *testing.T) {
	app := newApp()

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		want        int
	}{
		{"plain message", http.MethodPost, "/conversation", "application/json", `{"message":"hello"}`, 200},
		{"missing message left to handler", http.MethodPost, "/conversation", "application/json", `{}`, 200},
		{"message too long", http.MethodPost, "/conversation", "application/json", `{"message":"` + strings.Repeat("a", 21) + `"}`, 400},
		{"message not a string", http.MethodPost, "/conversation", "application/json", `{"message":5}`, 400},
		{"script in message", http.MethodPost, "/conversation", "application/json", `{"message":"<script>x"}`, 400},
		{"trailing slash still checked", http.MethodPost, "/conversation/", "application/json", `{"message":"<script>x"}`, 400},
		{"upper case path still checked", http.MethodPost, "/Conversation", "application/json", `{"message":"` + strings.Repeat("a", 21) + `"}`, 400},
		{"trailing slash transaction", http.MethodPost, "/transactions/", "application/json", `{`, 400},
		{"malformed json", http.MethodPost, "/transactions", "application/json", `{`, 400},
		{"xss in description", http.MethodPost, "/transactions", "application/json", `{"description":"javascript:alert(1)"}`, 400},
		{"valid transaction", http.MethodPost, "/transactions", "application/json", `{"description":"bottles","amount":3}`, 200},
		{"wrong content type", http.MethodPost, "/predict", "text/plain", `{}`, 415},
		{"no content type", http.MethodPost, "/predict", "", `{}`, 200},
		{"predict body untouched", http.MethodPost, "/predict", "application/json", `not json`, 200},
		{"get passes", http.MethodGet, "/insights", "", "", 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, body := do(t, app, tt.method, tt.path, tt.contentType, tt.body)
			if got != tt.want {
				t.Fatalf("status %d want %d (body %s)", got, tt.want, body)
			}
		})
	}
}
