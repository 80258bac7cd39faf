// Package stores persists hookmill's operation history: one record per
// operation run and one per executed hook. This is an audit trail owned
// by the orchestrator itself; the release's managed-resource state
// remains the external release tracker's concern, and hook resources are
// never recorded as managed.
package stores
