package analysis

import "sync"

// Registry holds one Session per workspace
type Registry struct {
	mu       sync.Mutex
	sessions map[int]*Session
	source   StatisticsSource
	metrics  MetricsRecorder
}

func NewRegistry(source StatisticsSource, metrics MetricsRecorder) *Registry {
	return &Registry{
		sessions: make(map[int]*Session),
		source:   source,
		metrics:  metrics,
	}
}

// Session returns the session of the workspace, creating it on first use
func (r *Registry) Session(workspaceID int) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[workspaceID]
	if !ok {
		s = NewSession(workspaceID, r.source, r.metrics)
		r.sessions[workspaceID] = s
	}
	return s
}

// Reset discards the session of the workspace
func (r *Registry) Reset(workspaceID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, workspaceID)
}
