// Package claims persists manuscript claims, the quotes that support them and the
// registry of cited sources.
//
// File layout:
//
//	claims.json
//	├── version
//	├── claims[]   ← id, text, source, primary quote, verification state
//	└── sources[]  ← cited works, resolved against the corpus for coverage
package claims

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/fyrsmithlabs/quotecheck/internal/corpus"
	"github.com/fyrsmithlabs/quotecheck/internal/persist"
)

// FileVersion is the persisted claims format.
const FileVersion = 1

// Errors for claims operations.
var (
	ErrClaimNotFound   = errors.New("claim not found")
	ErrInvalidClaimID  = errors.New("invalid claim id: expected C_<number>")
	ErrStoreCorrupted  = errors.New("claims file corrupted")
	ErrVersionMismatch = errors.New("claims file version mismatch")
)

// idPattern validates claim ids such as C_07.
var idPattern = regexp.MustCompile(`^C_\d+$`)

// Claim is a statement in a manuscript and the quote offered as its evidence.
type Claim struct {
	ID           string     `json:"id"`
	Text         string     `json:"text"`
	Category     string     `json:"category,omitempty"`
	Source       string     `json:"source,omitempty"`
	PrimaryQuote string     `json:"primaryQuote,omitempty"`
	PageHint     *int       `json:"pageHint,omitempty"`
	Verified     bool       `json:"verified"`
	VerifiedAt   *time.Time `json:"verifiedAt,omitempty"`
	Confidence   *float64   `json:"confidence,omitempty"`
}

// Patch is a partial claim update. Nil fields are left unchanged.
type Patch struct {
	Verified   *bool
	VerifiedAt *time.Time
	Confidence *float64
	Source     *string
}

func (p Patch) apply(c *Claim) {
	if p.Verified != nil {
		c.Verified = *p.Verified
	}
	if p.VerifiedAt != nil {
		t := *p.VerifiedAt
		c.VerifiedAt = &t
	}
	if p.Confidence != nil {
		v := *p.Confidence
		c.Confidence = &v
	}
	if p.Source != nil {
		c.Source = *p.Source
	}
}

type fileData struct {
	Version   int             `json:"version"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Claims    []Claim         `json:"claims"`
	Sources   []corpus.Source `json:"sources,omitempty"`
}

// FileStore keeps claims in a JSON file. It is safe for concurrent use.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	claims  map[string]*Claim
	sources []corpus.Source
}

// ValidateID checks a claim id.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidClaimID, id)
	}
	return nil
}

// OpenFileStore loads path. A missing file yields an empty store; a corrupt file is an error.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		claims: make(map[string]*Claim),
	}

	var data fileData
	err := persist.ReadJSON(path, &data)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case errors.Is(err, persist.ErrCorrupted):
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupted, err)
	case err != nil:
		return nil, fmt.Errorf("failed to load claims: %w", err)
	case data.Version != FileVersion:
		return nil, fmt.Errorf("%w: found %d, expected %d", ErrVersionMismatch, data.Version, FileVersion)
	}

	for i := range data.Claims {
		c := data.Claims[i]
		s.claims[c.ID] = &c
	}
	s.sources = data.Sources
	return s, nil
}

// GetClaim returns a copy of the claim with id.
func (s *FileStore) GetClaim(_ context.Context, id string) (*Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.claims[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClaimNotFound, id)
	}
	cp := *c
	return &cp, nil
}

// GetClaims returns every claim ordered by id.
func (s *FileStore) GetClaims(_ context.Context) ([]Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Claim, 0, len(s.claims))
	for _, c := range s.claims {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out, nil
}

// UpdateClaim applies patch to the claim with id and persists the store.
func (s *FileStore) UpdateClaim(_ context.Context, id string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrClaimNotFound, id)
	}
	patch.apply(c)
	return s.saveLocked()
}

// PutClaim adds or replaces a claim and persists the store.
func (s *FileStore) PutClaim(_ context.Context, c Claim) error {
	if err := ValidateID(c.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.claims[c.ID] = &c
	return s.saveLocked()
}

// Sources returns the registry of cited works.
func (s *FileStore) Sources(_ context.Context) []corpus.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]corpus.Source(nil), s.sources...)
}

// SetSources replaces the source registry and persists the store.
func (s *FileStore) SetSources(_ context.Context, sources []corpus.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sources = append([]corpus.Source(nil), sources...)
	return s.saveLocked()
}

func (s *FileStore) saveLocked() error {
	data := fileData{
		Version:   FileVersion,
		UpdatedAt: time.Now().UTC(),
		Claims:    make([]Claim, 0, len(s.claims)),
		Sources:   s.sources,
	}
	for _, c := range s.claims {
		data.Claims = append(data.Claims, *c)
	}
	sort.Slice(data.Claims, func(i, j int) bool { return lessID(data.Claims[i].ID, data.Claims[j].ID) })

	if err := persist.WriteJSON(s.path, data); err != nil {
		return fmt.Errorf("failed to save claims: %w", err)
	}
	return nil
}

// lessID orders C_2 before C_10.
func lessID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
