package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// MetricPrefix is the name prefix of every scoring collector.
const MetricPrefix = "agency_client_scoring_"

// Metrics scrapes /metrics and returns the parsed metric families.
func (c *Client) Metrics(ctx context.Context) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/metrics", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get metrics: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnexpected, resp.StatusCode)
	}
	return ParseMetrics(resp.Body)
}

// ParseMetrics decodes a Prometheus text exposition. A partial parse with
// at least one family is returned without error.
func ParseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("%w: parse prometheus text: %w", ErrUnexpected, err)
	}
	return mfs, nil
}

// SumFamily adds up the counter, gauge and untyped samples of mf.
// Histograms contribute their sample count. Nil yields 0.
func SumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		case m.Histogram != nil:
			total += float64(m.Histogram.GetSampleCount())
		}
	}
	return total
}

// Summarize sums every family whose name starts with prefix, keyed by the
// name with the prefix trimmed.
func Summarize(mfs map[string]*dto.MetricFamily, prefix string) map[string]float64 {
	names := make([]string, 0, len(mfs))
	for name := range mfs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make(map[string]float64, len(names))
	for _, name := range names {
		out[strings.TrimPrefix(name, prefix)] = SumFamily(mfs[name])
	}
	return out
}
