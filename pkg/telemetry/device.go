package telemetry

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// DeviceID identifies this host for app without exposing the machine
// ID. The hostname is used where no machine ID is available.
func DeviceID(app string) string {
	id, err := machineid.ProtectedID(app)
	if err == nil {
		return id[:16]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "unknown"
}
