package provider

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/nightwatch/nightwatch/pkg/log"
)

// pingProvider shells out to the system ping command. Designed for the
// iputils ping found on Linux.
type pingProvider struct {
	addr          string
	count         int
	timeout       int
	requestedData string
	logger        zerolog.Logger
}

var (
	pktLossRe = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)% packet loss`)
	rttRe     = regexp.MustCompile(`rtt min/avg/max/mdev = ([0-9.]+)/([0-9.]+)/([0-9.]+)/([0-9.]+)`)
)

func pingSpec() Spec {
	return Spec{
		New: newPingProvider,
		Mandatory: []string{
			"ping_addr", // IP address or hostname to ping
		},
		Optional: []string{
			"count",          // -c option: number of echo requests, default 1
			"timeout",        // -W option: seconds to wait for a response
			"requested_data", // "status" (default), "pkt_loss", "ping_avg", "ping_min" or "ping_max"
		},
	}
}

func newPingProvider(cfg map[string]any) (Provider, error) {
	p := &pingProvider{
		addr:          stringOption(cfg, "ping_addr", ""),
		count:         intOption(cfg, "count", 1),
		timeout:       intOption(cfg, "timeout", 0),
		requestedData: stringOption(cfg, "requested_data", "status"),
		logger:        log.WithProvider("ping"),
	}

	switch p.requestedData {
	case "status", "pkt_loss", "ping_avg", "ping_min", "ping_max":
	default:
		return nil, configErrorf("ping", "requested_data %q is not allowed", p.requestedData)
	}
	return p, nil
}

func (p *pingProvider) args() []string {
	args := []string{"-c", strconv.Itoa(p.count)}
	if p.timeout > 0 {
		args = append(args, "-W", strconv.Itoa(p.timeout))
	}
	return append(args, p.addr)
}

func (p *pingProvider) Process(ctx context.Context) (any, error) {
	cmd := exec.CommandContext(ctx, "ping", p.args()...)
	output, err := cmd.CombinedOutput()

	exit := -1
	if cmd.ProcessState != nil {
		exit = cmd.ProcessState.ExitCode()
	}
	p.logger.Debug().Str("addr", p.addr).Int("exit", exit).Msg("ping executed")

	if p.requestedData == "status" {
		// The exit code itself is the observed value; an unreachable host is
		// a legitimate observation, not a provider error.
		if cmd.ProcessState != nil {
			return exit, nil
		}
		return nil, err
	}

	if err != nil {
		return nil, fmt.Errorf("ping %s: %w: %s", p.addr, err, output)
	}
	return parsePingOutput(string(output), p.requestedData)
}

// parsePingOutput extracts the requested statistic from ping's stdout.
func parsePingOutput(output, requested string) (any, error) {
	if requested == "pkt_loss" {
		m := pktLossRe.FindStringSubmatch(output)
		if m == nil {
			return nil, fmt.Errorf("packet loss not found in ping output")
		}
		return strconv.ParseFloat(m[1], 64)
	}

	m := rttRe.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("rtt statistics not found in ping output")
	}
	switch requested {
	case "ping_min":
		return strconv.ParseFloat(m[1], 64)
	case "ping_avg":
		return strconv.ParseFloat(m[2], 64)
	case "ping_max":
		return strconv.ParseFloat(m[3], 64)
	}
	return nil, fmt.Errorf("unknown requested data %q", requested)
}
