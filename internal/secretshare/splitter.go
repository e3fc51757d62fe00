// Package secretshare splits a symmetric key into Shamir shares and combines
// them back. The splitter tracks the threshold chosen at split time, so a
// combine attempt with too few shares fails loudly instead of silently
// producing a wrong secret.
package secretshare

import (
	"fmt"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/hashicorp/vault/shamir"
)

// Default parameters: three shares (client, server, backup), any two of
// which reconstruct the key.
const (
	DefaultShareCount = 3
	DefaultThreshold  = 2
)

// Splitter produces and recombines shares over GF(256) with a fixed
// share count and threshold.
type Splitter struct {
	shares    int
	threshold int
}

// New creates a Splitter producing the given number of shares, any
// threshold of which reconstruct the secret.
func New(shares, threshold int) (*Splitter, error) {
	if threshold < 2 {
		return nil, fmt.Errorf("%w: threshold must be at least 2", common.ErrorValidation)
	}
	if shares < threshold {
		return nil, fmt.Errorf("%w: share count must be at least the threshold", common.ErrorValidation)
	}
	if shares > 255 {
		return nil, fmt.Errorf("%w: share count must not exceed 255", common.ErrorValidation)
	}
	return &Splitter{shares: shares, threshold: threshold}, nil
}

// Default returns a 2-of-3 splitter.
func Default() *Splitter {
	return &Splitter{shares: DefaultShareCount, threshold: DefaultThreshold}
}

// Threshold returns the minimum number of distinct shares Combine requires.
func (s *Splitter) Threshold() int {
	return s.threshold
}

// Split produces the configured number of shares for the secret. Any
// threshold-sized subset of them reconstructs the secret exactly; fewer
// reveal nothing about it.
func (s *Splitter) Split(secret []byte) ([][]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty secret", common.ErrorValidation)
	}
	shares, err := shamir.Split(secret, s.shares, s.threshold)
	if err != nil {
		return nil, fmt.Errorf("splitting secret: %w", err)
	}
	return shares, nil
}

// Combine reconstructs the secret from the given shares. Duplicate shares
// are counted once. It returns common.ErrInsufficientShares when fewer than
// the threshold of distinct shares are supplied; it never returns a wrong
// secret for that case.
func (s *Splitter) Combine(parts [][]byte) ([]byte, error) {
	seen := make(map[string]struct{}, len(parts))
	distinct := make([][]byte, 0, len(parts))
	for _, p := range parts {
		if _, ok := seen[string(p)]; ok {
			continue
		}
		seen[string(p)] = struct{}{}
		distinct = append(distinct, p)
	}

	if len(distinct) < s.threshold {
		return nil, fmt.Errorf("%w: got %d distinct shares, need %d",
			common.ErrInsufficientShares, len(distinct), s.threshold)
	}

	secret, err := shamir.Combine(distinct)
	if err != nil {
		return nil, fmt.Errorf("combining shares: %w", err)
	}
	return secret, nil
}
