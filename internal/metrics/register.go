// Package metrics defines the Prometheus collectors of the service.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Register adds every collector to reg. Collectors already present are
// skipped, so it is safe to call more than once.
func Register(reg prometheus.Registerer) error {
	var all []prometheus.Collector
	all = append(all, httpCollectors()...)
	all = append(all, embeddingCollectors()...)
	all = append(all, indexCollectors()...)
	all = append(all, generationCollectors()...)

	for _, c := range all {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("register collector: %w", err)
		}
	}
	return nil
}

// MustRegister registers on the default registry and panics on conflict.
func MustRegister() {
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		panic(err)
	}
}
