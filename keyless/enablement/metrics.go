// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package enablement

import "github.com/prometheus/client_golang/prometheus"

const (
	resultRestored = "restored"
	resultSkipped  = "skipped"
	resultError    = "error"
)

// Metrics counts enablement attempts per recovery path and result.
type Metrics struct {
	Attempts *prometheus.CounterVec
}

// NewMetrics creates the enablement metrics and registers them with reg, if
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "keyless",
				Name:      "enable_attempts_total",
				Help:      "Wallet enablement attempts by recovery path and result",
			},
			[]string{"path", "result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Attempts)
	}
	return m
}

func (m *Metrics) observe(path, result string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(path, result).Inc()
}
