// Package session keeps per-browser state for the generation form.
//
// Invariants:
// - The counted flag flips to true at most once per session.
// - At most one generated image path is live per session.
// - At most one generation runs per session at a time.
// - Session IDs are UUIDs; anything else presented by a client is replaced.
//
// Usage:
//
//	reg := session.NewRegistry(2*time.Hour, nil)
//	st, _ := reg.GetOrCreate(cookieValue)
//	if st.BeginGeneration() {
//		defer st.EndGeneration()
//	}
package session
