// Package familydir answers family-membership questions. Family data is
// owned by an external identity system; this package only provides the
// lookup used by scope checks, with a file-backed implementation for
// deployments that sync membership as a JSON snapshot.
package familydir

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Static resolves membership from an in-memory map of user id to family ids.
type Static struct {
	members map[string][]string
}

// New creates a directory over the given membership map.
func New(members map[string][]string) *Static {
	if members == nil {
		members = map[string][]string{}
	}
	return &Static{members: members}
}

// LoadFile reads a JSON file of the form {"user-id": ["family-id", ...]}.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading family directory: %w", err)
	}

	members := map[string][]string{}
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("parsing family directory: %w", err)
	}

	return New(members), nil
}

func (s *Static) FamiliesOf(ctx context.Context, userID string) ([]string, error) {
	return s.members[userID], nil
}

func (s *Static) IsMember(ctx context.Context, userID, familyID string) (bool, error) {
	for _, id := range s.members[userID] {
		if id == familyID {
			return true, nil
		}
	}
	return false, nil
}
