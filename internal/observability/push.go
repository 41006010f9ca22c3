package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends the run metrics to a Prometheus Pushgateway, replacing the
// previous values for the job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	p := push.New(url, job)
	for _, c := range m.Collectors() {
		p = p.Collector(c)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
