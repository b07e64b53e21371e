// Package utils holds small helpers shared by the reflex commands.
package utils

// Build metadata reported by `reflex version`. Release builds set these with
// -ldflags "-X github.com/papercomputeco/reflex/pkg/utils.Version=...".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
