// Credential failover state shared across workers.
//
// The active index is guarded by a mutex together with a generation
// counter. A worker reads (credential, generation) once per attempt; a
// failure report only triggers the primary-to-backup switch if the
// generation is still current. When several workers hit rate limits at
// the same time, the first report switches and the rest are no-ops.

package llm

import (
	"errors"
	"sync"
)

// Credential is one API key for the completion backend.
type Credential struct {
	Label  string
	APIKey string
}

// CredentialSet is an ordered list of at most two credentials (primary,
// backup) with a shared active index. Safe for concurrent use.
type CredentialSet struct {
	mu         sync.Mutex
	creds      []Credential
	active     int
	generation uint64
}

// NewCredentialSet creates a credential set from a primary key and an
// optional backup key (empty string for none).
func NewCredentialSet(primary, backup string) (*CredentialSet, error) {
	if primary == "" {
		return nil, errors.New("credentials: primary API key is empty")
	}
	creds := []Credential{{Label: "primary", APIKey: primary}}
	if backup != "" {
		creds = append(creds, Credential{Label: "backup", APIKey: backup})
	}
	return &CredentialSet{creds: creds}, nil
}

// Active returns the credential new requests should use, plus the
// generation token to hand back to ReportFailure.
func (s *CredentialSet) Active() (Credential, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds[s.active], s.generation
}

// HasBackup reports whether a backup credential exists.
func (s *CredentialSet) HasBackup() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creds) > 1
}

// OnPrimary reports whether the active credential is the primary.
func (s *CredentialSet) OnPrimary() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == 0
}

// ReportFailure records a rate-limit or server failure observed while
// using the credential read at generation gen. Switches to the backup if
// the set is still on the primary and gen is current; stale reports are
// no-ops. Returns true if the switch happened.
func (s *CredentialSet) ReportFailure(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	if s.active != 0 || len(s.creds) < 2 {
		return false
	}
	s.active = 1
	s.generation++
	return true
}

// ReportSuccess records a clean completion and resets toward the primary
// credential so later requests try it again.
func (s *CredentialSet) ReportSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != 0 {
		s.active = 0
		s.generation++
	}
}
