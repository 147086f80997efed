// Package dcgm implements a GPU telemetry source that scrapes
// dcgm-exporter Prometheus endpoints.
//
// DCGM sentinel values (~1.8e19) are detected and rejected so a blank
// field never corrupts a series. Where the exporter publishes the power
// management limit, it is carried as the device's rated power so
// power_pct can be derived downstream.
package dcgm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	monerrors "github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/errors"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/source"
)

// Source polls GPU telemetry from one or more dcgm-exporter endpoints.
type Source struct {
	client    *http.Client
	endpoints []string
}

// New creates a Source scraping the given base URLs (e.g.
// "http://10.0.0.5:9400"); "/metrics" is appended per scrape.
func New(client *http.Client, endpoints []string) *Source {
	return &Source{client: client, endpoints: endpoints}
}

// Name identifies the source in logs and diagnostics.
func (s *Source) Name() string { return "dcgm-exporter" }

// Poll scrapes every endpoint and merges the parsed device readings.
// Individual endpoint failures are tolerated as long as at least one
// endpoint answers; all endpoints failing is a SourceUnavailable
// condition.
func (s *Source) Poll(ctx context.Context) (source.Reading, error) {
	if len(s.endpoints) == 0 {
		return source.Reading{}, &monerrors.SourceUnavailableError{
			Source: s.Name(),
			Err:    fmt.Errorf("no endpoints configured"),
		}
	}

	var (
		readings []source.DeviceReading
		scraped  int
		lastErr  error
	)
	for _, endpoint := range s.endpoints {
		body, err := s.scrape(ctx, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		scraped++
		readings = append(readings, parseExposition(body)...)
	}

	if scraped == 0 {
		return source.Reading{}, &monerrors.SourceUnavailableError{Source: s.Name(), Err: lastErr}
	}
	return source.Reading{Devices: readings}, nil
}

// scrape fetches raw Prometheus exposition text from one endpoint.
func (s *Source) scrape(ctx context.Context, endpoint string) ([]byte, error) {
	url := strings.TrimRight(endpoint, "/") + "/metrics"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", url, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scraping %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}

	return body, nil
}
