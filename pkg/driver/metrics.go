// Copyright 2024 Nokia
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

package driver

import "github.com/prometheus/client_golang/prometheus"

var (
	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shell_server",
		Subsystem: "driver",
		Name:      "commands_total",
		Help:      "Number of driver commands by outcome.",
	}, []string{"kind", "command", "result"})
	commandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shell_server",
		Subsystem: "driver",
		Name:      "command_duration_seconds",
		Help:      "Duration of driver commands.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"kind", "command"})
)

// MustRegister registers the driver metrics with reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(commandsTotal, commandDuration)
}
