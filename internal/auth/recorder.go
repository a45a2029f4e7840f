package auth

// Recorder receives auth events for metrics. Implementations must be safe
// for concurrent use.
type Recorder interface {
	ObserveAuth(scheme Scheme, outcome string)
	ObserveCacheLookup(hit bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAuth(Scheme, string) {}
func (nopRecorder) ObserveCacheLookup(bool)    {}
