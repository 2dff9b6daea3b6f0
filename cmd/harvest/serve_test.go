package main_test

import (
	"bytes"
	"context"
	"testing"

	main "github.com/fwojciec/harvest/cmd/harvest"
	"github.com/fwojciec/harvest/export"
	"github.com/fwojciec/harvest/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("listens until context is canceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		stdout := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:       ctx,
			Stdout:    stdout,
			Stderr:    &bytes.Buffer{},
			Scraper:   &mock.ScrapeService{},
			Exporter:  export.NewExporter(),
			Templates: &mock.TemplateService{},
			Runs:      &mock.RunService{},
		}

		err := (&main.ServeCmd{Addr: "127.0.0.1:0"}).Run(deps)

		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "Listening on :")
		assert.Contains(t, stdout.String(), "/enrich disabled")
	})

	t.Run("reports bind errors", func(t *testing.T) {
		t.Parallel()

		stderr := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:    context.Background(),
			Stdout: &bytes.Buffer{},
			Stderr: stderr,
		}

		err := (&main.ServeCmd{Addr: "127.0.0.1:-1"}).Run(deps)

		require.Error(t, err)
		assert.Contains(t, stderr.String(), "error:")
	})
}
