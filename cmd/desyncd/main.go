// Command desyncd runs the on-device DPI circumvention daemon and its
// control-plane client (spec.md §6).
package main

func main() {
	Execute()
}
