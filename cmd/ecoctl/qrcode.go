package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecotracker/backend/internal/qrcode"
	"github.com/ecotracker/backend/pkg/logger"
)

func newQRCodeCmd() *cobra.Command {
	var (
		url, title, color, logo, output string
		withHTML                        bool
	)

	cmd := &cobra.Command{
		Use:   "qrcode",
		Short: "Generate a QR code image for the EcoTracker app",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := qrcode.Options{
				URL:      pick(url, cfg.QRCode.URL),
				Title:    pick(title, cfg.QRCode.Title),
				Color:    pick(color, cfg.QRCode.Color),
				LogoPath: pick(logo, cfg.QRCode.Logo),
			}

			if err := qrcode.WriteFile(output, opts); err != nil {
				return err
			}
			logger.Info("QR code generated", zap.String("path", output), zap.String("url", opts.URL))
			fmt.Fprintf(cmd.OutOrStdout(), "QR code saved to %s\n", output)

			if !withHTML {
				return nil
			}
			page, err := qrcode.HTML(opts)
			if err != nil {
				return err
			}
			htmlPath := strings.TrimSuffix(output, filepath.Ext(output)) + ".html"
			if err := os.WriteFile(htmlPath, []byte(page), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", htmlPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "HTML page saved to %s\n", htmlPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "URL to encode (defaults to qrcode.url)")
	cmd.Flags().StringVar(&title, "title", "", "title drawn above the code")
	cmd.Flags().StringVar(&color, "color", "", "module colour as #rrggbb")
	cmd.Flags().StringVar(&logo, "logo", "", "optional logo image placed in the centre")
	cmd.Flags().StringVarP(&output, "output", "o", "ecotracker_qrcode.png", "output PNG path")
	cmd.Flags().BoolVar(&withHTML, "html", false, "also write an HTML page next to the image")
	return cmd
}

func pick(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}
