// Package vfu defines the narrow interfaces through which the xHCI core is
// driven by, and drives, the external collaborators named in the external
// interfaces: the vfio-user server framing, the generic PCI
// configuration-space builder, and the PCAP capture logger. None of those
// collaborators is implemented here; this package only names the boundary
// and ships the minimal reference adapter cmd/vxhcid wires up so the module
// is a runnable program.
package vfu
