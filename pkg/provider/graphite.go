package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/nightwatch/nightwatch/pkg/log"
)

const defaultGraphiteTimeout = 10 * time.Second

// graphiteProvider queries a graphite render API for one target and reduces
// the returned datapoints to a single value.
type graphiteProvider struct {
	serverURL  string
	target     string
	from       string
	aggregator string
	user       string
	password   string
	client     *http.Client
	logger     zerolog.Logger
}

// renderSeries is one entry of a graphite render format=json response.
// Datapoints are [value, timestamp] pairs; value is null for empty buckets.
type renderSeries struct {
	Target     string       `json:"target"`
	Datapoints [][2]*floatV `json:"datapoints"`
}

type floatV float64

func graphiteSpec() Spec {
	return Spec{
		New: newGraphiteProvider,
		Mandatory: []string{
			"url",    // base URL of the graphite server
			"target", // metric path or render expression
		},
		Optional: []string{
			"from",       // render window, default -5min
			"aggregator", // "last" (default), "avg", "min" or "max"
			"user",       // basic auth user
			"password",   // basic auth password
			"timeout",    // request timeout in seconds, default 10
		},
	}
}

func newGraphiteProvider(cfg map[string]any) (Provider, error) {
	p := &graphiteProvider{
		serverURL:  stringOption(cfg, "url", ""),
		target:     stringOption(cfg, "target", ""),
		from:       stringOption(cfg, "from", "-5min"),
		aggregator: stringOption(cfg, "aggregator", "last"),
		user:       stringOption(cfg, "user", ""),
		password:   stringOption(cfg, "password", ""),
		client: &http.Client{
			Timeout: time.Duration(intOption(cfg, "timeout", int(defaultGraphiteTimeout/time.Second))) * time.Second,
		},
		logger: log.WithProvider("graphite"),
	}

	switch p.aggregator {
	case "last", "avg", "min", "max":
	default:
		return nil, configErrorf("graphite", "aggregator %q is not allowed, expected last, avg, min or max", p.aggregator)
	}
	return p, nil
}

func (p *graphiteProvider) Process(ctx context.Context) (any, error) {
	query := url.Values{
		"target": {p.target},
		"from":   {p.from},
		"format": {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+"/render?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if p.user != "" {
		req.SetBasicAuth(p.user, p.password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graphite render returned status %d", resp.StatusCode)
	}

	var series []renderSeries
	if err := json.NewDecoder(resp.Body).Decode(&series); err != nil {
		return nil, fmt.Errorf("graphite render response is not valid json: %w", err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no series returned for target %q", p.target)
	}

	values := make([]float64, 0, len(series[0].Datapoints))
	for _, dp := range series[0].Datapoints {
		if dp[0] != nil {
			values = append(values, float64(*dp[0]))
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no datapoints returned for target %q", p.target)
	}

	value := aggregate(values, p.aggregator)
	p.logger.Debug().
		Str("target", p.target).
		Str("aggregator", p.aggregator).
		Float64("value", value).
		Msg("target rendered")
	return value, nil
}

func aggregate(values []float64, aggregator string) float64 {
	switch aggregator {
	case "last":
		return values[len(values)-1]
	case "avg":
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case "min":
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case "max":
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	}
	return 0
}
