package obs

import (
	"fmt"

	pyroscope "github.com/grafana/pyroscope-go"
)

// StartProfiler attaches a continuous profiler to serverAddr, gated
// behind a feature toggle. Call the returned stop func on shutdown; it
// is a no-op if serverAddr is empty.
func StartProfiler(appName, serverAddr string, tags map[string]string) (func() error, error) {
	if serverAddr == "" {
		return func() error { return nil }, nil
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   serverAddr,
		Tags:            tags,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("obs: start profiler: %w", err)
	}
	return profiler.Stop, nil
}
