package market

import (
	"fmt"
	"strings"
)

// Pair identifies a currency pair by its base and target ISO codes.
type Pair struct {
	Base   string
	Target string
}

// NewPair validates and normalises a currency pair.
func NewPair(base, target string) (Pair, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	target = strings.ToUpper(strings.TrimSpace(target))
	if len(base) != 3 || len(target) != 3 {
		return Pair{}, fmt.Errorf("currency codes must be three letters, got %q/%q", base, target)
	}
	if base == target {
		return Pair{}, fmt.Errorf("base and target currencies must differ, got %q", base)
	}
	return Pair{Base: base, Target: target}, nil
}

// String returns the concatenated pair code, e.g. "GBPGHS".
func (p Pair) String() string {
	return p.Base + p.Target
}

// Symbol returns the provider ticker for the pair, e.g. "C:GBPGHS".
func (p Pair) Symbol() string {
	return "C:" + p.String()
}
