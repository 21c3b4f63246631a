package manager

import "kerasbridge/pkg/types"

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	st := m.rt.Status()
	m.mu.RLock()
	n := len(m.objects)
	m.mu.RUnlock()
	dep := m.dependency
	if m.minVersion != "" {
		dep += ">=" + m.minVersion
	}
	modules := st.Modules
	if modules == nil {
		modules = []string{}
	}
	return types.StatusResponse{
		State:              string(st.State),
		Error:              st.Error,
		Python:             st.Python,
		PythonVersion:      st.PythonVersion,
		InterpreterVersion: st.InterpreterVersion,
		Dependency:         dep,
		Modules:            modules,
		Objects:            n,
		InitMillis:         st.InitDuration.Milliseconds(),
		UptimeSeconds:      int64(m.now().Sub(m.startTime).Seconds()),
	}
}
