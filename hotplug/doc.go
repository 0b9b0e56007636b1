// Package hotplug implements the control-plane protocol an external
// attacher uses to plug and unplug USB devices into a running controller: a
// Unix-socket server (server.go) and the wire codec for its command and
// response frames (codec.go).
package hotplug
