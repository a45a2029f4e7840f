package domain

import "time"

// ServiceHealthStatus is the last known reachability of one endpoint.
//
// Records are written only by the health monitor and handed out by value.
type ServiceHealthStatus struct {
	Name          string    `json:"name"`
	Reachable     bool      `json:"reachable"`
	LastCheckedAt time.Time `json:"lastCheckedAt"`
	LastError     string    `json:"lastError,omitempty"`
}

// SplitByReachability returns the names of reachable and unreachable services,
// preserving input order.
func SplitByReachability(statuses []ServiceHealthStatus) (available, unavailable []string) {
	available = make([]string, 0, len(statuses))
	unavailable = make([]string, 0, len(statuses))
	for _, s := range statuses {
		if s.Reachable {
			available = append(available, s.Name)
		} else {
			unavailable = append(unavailable, s.Name)
		}
	}
	return available, unavailable
}
