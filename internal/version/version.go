// Package version provides build information for trafficsim.
package version

// Version is the release version, overridable at build time with
//
//	go build -ldflags "-X github.com/Arlo-O/FinalDelivery-Project-FCS/internal/version.Version=x.y.z"
var Version = "0.3.0"
