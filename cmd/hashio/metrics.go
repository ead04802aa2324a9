package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// printMetrics writes the counters and summaries gathered from g, one per line.
func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "hashio_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%s", l.GetName(), l.GetValue()))
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(w, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
			case m.GetSummary() != nil:
				s := m.GetSummary()
				fmt.Fprintf(w, "%s{%s} count=%d sum=%gs\n", mf.GetName(), strings.Join(labels, ","), s.GetSampleCount(), s.GetSampleSum())
			}
		}
	}
	return nil
}
