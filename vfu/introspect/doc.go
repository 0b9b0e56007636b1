// Package introspect serves the optional, read-only management socket: two
// RPCs reporting controller run state and the set of currently attached
// devices. The domain stack's SPEC_FULL.md addition describes this as a
// gRPC service (proto package vxhci.introspect.v1); hand-authoring
// protoc-generated descriptor tables without ever running protoc or the Go
// toolchain is not achievable reliably (see DESIGN.md), so the same two
// read-only calls are served instead over net/rpc on a private Unix socket —
// same wire boundary (a second socket, started only with -introspect-socket),
// same two calls, no guest-visible effect either way.
package introspect
