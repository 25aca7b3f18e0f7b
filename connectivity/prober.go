package connectivity

import (
	"context"
	"net/http"
	"time"

	"github.com/realmorph/datakit/logger"
	"github.com/realmorph/datakit/routine"
	"go.uber.org/zap"
)

// Prober drives a Monitor by periodically probing an HTTP endpoint.
// Any response, including an error status, counts as connectivity; only a
// transport-level failure flips the monitor offline.
type Prober struct {
	logger  logger.Logger
	monitor Monitor
	client  *http.Client
	url     string
	every   time.Duration
	cancel  context.CancelFunc
}

// NewProber creates a Prober for the given monitor.
// It does not start probing until Start is called.
func NewProber(log logger.Logger, m Monitor, cfg *ProberConfig) (*Prober, error) {
	if cfg == nil {
		cfg = DefaultProberConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Prober{
		logger:  log,
		monitor: m,
		client:  &http.Client{Timeout: cfg.Timeout},
		url:     cfg.URL,
		every:   cfg.Interval,
	}, nil
}

// Start begins the probe loop in a background goroutine.
func (p *Prober) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	routine.GoNamedWithContext(ctx, p.logger, "connectivity-probe", func(ctx context.Context) {
		ticker := time.NewTicker(p.every)
		defer ticker.Stop()

		p.probe(ctx)
		for {
			select {
			case <-ticker.C:
				p.probe(ctx)
			case <-ctx.Done():
				return
			}
		}
	})
}

// Stop halts the probe loop. It can be called multiple times safely.
func (p *Prober) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Prober) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		p.logger.Error("invalid probe request", zap.String("url", p.url), zap.Error(err))
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.monitor.SetOnline(false)
		return
	}
	resp.Body.Close()
	p.monitor.SetOnline(true)
}
