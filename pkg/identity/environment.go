package identity

import (
	"time"

	gopsnet "github.com/shirou/gopsutil/v3/net"
)

// Interface is the slice of a network adapter the context cares about:
// whether it is operational and its physical (MAC) address.
type Interface struct {
	Name         string
	Up           bool
	HardwareAddr string
}

// Environment supplies process-environment facts: the host's network
// adapters and the wall clock. Injected so tests can pin both.
type Environment interface {
	// Interfaces lists the host's network adapters.
	Interfaces() ([]Interface, error)

	// Millisecond returns the current UTC wall-clock millisecond-of-second (0-999).
	Millisecond() int
}

// hostEnvironment implements Environment against the real host.
type hostEnvironment struct{}

// NewHostEnvironment returns the real-host Environment.
func NewHostEnvironment() Environment {
	return &hostEnvironment{}
}

// Interfaces lists network adapters via gopsutil.
func (hostEnvironment) Interfaces() ([]Interface, error) {
	stats, err := gopsnet.Interfaces()
	if err != nil {
		return nil, err
	}

	interfaces := make([]Interface, 0, len(stats))
	for _, stat := range stats {
		up := false
		for _, flag := range stat.Flags {
			if flag == "up" {
				up = true
				break
			}
		}

		interfaces = append(interfaces, Interface{
			Name:         stat.Name,
			Up:           up,
			HardwareAddr: stat.HardwareAddr,
		})
	}

	return interfaces, nil
}

// Millisecond returns the current UTC millisecond-of-second.
func (hostEnvironment) Millisecond() int {
	return time.Now().UTC().Nanosecond() / int(time.Millisecond)
}
