// Package worker runs the per-endpoint tasks that drain a Transfer Ring
// against a real device: one Control worker per control endpoint, one IN
// worker per Bulk-or-Interrupt IN endpoint, one OUT worker per Bulk OUT
// endpoint. Each worker blocks on a Notify handle when its ring is empty,
// woken by doorbell writes routed in from the controller.
package worker
