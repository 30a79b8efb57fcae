// Command slotsim drives a slot index with synthetic channels.
//
// Usage:
//
//	slotsim validate --config sim.yaml
//	slotsim run --config sim.yaml --duration 10s --metrics-addr :9090
//	slotsim run --transport nats --trace
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
