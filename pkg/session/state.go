package session

import (
	"sync"
	"time"
)

// State is the server-side state of one browser session
type State struct {
	ID string

	mu         sync.Mutex
	prompt     string
	imagePath  string
	counted    bool
	generating bool
	lastSeen   time.Time
}

// NewState creates an empty session state
func NewState(id string) *State {
	return &State{
		ID:       id,
		lastSeen: time.Now(),
	}
}

// Prompt returns the prompt currently in the form
func (s *State) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

// SetPrompt replaces the prompt, e.g. when an example button is pressed
func (s *State) SetPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = prompt
}

// ImagePath returns the live generated file path, or ""
func (s *State) ImagePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imagePath
}

// SetImagePath records the session's generated file and returns the path it
// replaced, which the caller must release.
func (s *State) SetImagePath(path string) (previous string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, s.imagePath = s.imagePath, path
	return previous
}

// TakeImagePath clears the live path and returns it
func (s *State) TakeImagePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.imagePath
	s.imagePath = ""
	return path
}

// ClearImagePath clears the live path only if it still equals path
func (s *State) ClearImagePath(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.imagePath != path || path == "" {
		return false
	}
	s.imagePath = ""
	return true
}

// MarkCounted flips the counted flag and reports whether this call flipped it
func (s *State) MarkCounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counted {
		return false
	}
	s.counted = true
	return true
}

// ResetCounted clears the counted flag after a failed count
func (s *State) ResetCounted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counted = false
}

// Counted reports whether the session has been counted as a visit
func (s *State) Counted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counted
}

// BeginGeneration acquires the session's generation guard. It returns false
// when a generation is already in flight.
func (s *State) BeginGeneration() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generating {
		return false
	}
	s.generating = true
	return true
}

// EndGeneration releases the generation guard
func (s *State) EndGeneration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false
}

// Generating reports whether a generation is in flight
func (s *State) Generating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}

// Touch marks the session as active now
func (s *State) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
}

// LastSeen returns the last activity time
func (s *State) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
