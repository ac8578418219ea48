package qrcode

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
)

const DefaultHeading = "Scan to access EcoTracker"

//go:embed page.html
var pageSource string

var pageTemplate = template.Must(template.New("page").Parse(pageSource))

type pageData struct {
	Heading string
	URL     string
	Color   template.CSS
	Image   template.URL
}

// HTML returns a printable page with the code embedded as a data URI. The
// title becomes the page heading instead of being drawn into the image.
func HTML(opts Options) (string, error) {
	opts = opts.withDefaults()
	heading := opts.Title
	if heading == "" {
		heading = DefaultHeading
	}

	if _, err := ParseColor(opts.Color); err != nil {
		return "", err
	}

	imgOpts := opts
	imgOpts.Title = ""
	data, err := EncodePNG(imgOpts)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, pageData{
		Heading: heading,
		URL:     opts.URL,
		Color:   template.CSS(opts.Color),
		Image:   template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(data)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render page: %w", err)
	}
	return buf.String(), nil
}
