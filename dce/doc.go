// Package dce removes unreferenced functions from SDCC generated STM8
// assembly before it is assembled and linked.
//
// The linker keeps every routine of every module it is given, and SDCC does
// not split modules into per-function sections, so an SPL module that is
// linked for a single routine costs its entire size in flash. The
// eliminator parses all modules of an image, builds the call graph from the
// entry point, the interrupt handlers and any function pointer tables, and
// comments out whatever is left.
package dce
