package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// BrowserRenderer prints HTML to PDF with a headless Chromium-family
// browser.
type BrowserRenderer struct {
	browserPath string
	timeout     time.Duration
}

func NewBrowserRenderer(browserPath string, timeout time.Duration) *BrowserRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserRenderer{browserPath: browserPath, timeout: timeout}
}

func (r *BrowserRenderer) Render(ctx context.Context, html []byte) ([]byte, error) {
	workDir, err := os.MkdirTemp("", "invoice-pdf-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	input := filepath.Join(workDir, "invoice.html")
	output := filepath.Join(workDir, "invoice.pdf")
	if err := os.WriteFile(input, html, 0o600); err != nil {
		return nil, fmt.Errorf("write invoice html: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.browserPath,
		"--headless",
		"--disable-gpu",
		"--no-sandbox",
		"--no-pdf-header-footer",
		"--user-data-dir="+filepath.Join(workDir, "profile"),
		"--print-to-pdf="+output,
		"file://"+input,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	started := time.Now()
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("browser timed out after %s", r.timeout)
		}
		return nil, fmt.Errorf("run browser: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	pdf, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("read rendered pdf: %w", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		return nil, errors.New("browser output is not a PDF")
	}

	slog.Debug("pdf rendered", "bytes", len(pdf), "duration_ms", time.Since(started).Milliseconds())
	return pdf, nil
}
