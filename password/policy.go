package password

import (
	"fmt"
	"math"
	"unicode"
)

// Policy holds the character-class rules and the minimum strength score a
// password must reach. The zero value rejects everything; use
// [DefaultPolicy] as a starting point.
type Policy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	// MinScore is the minimum strength score (0..4). The score is derived
	// from an entropy estimate and is independent of the class rules; both
	// gates must pass.
	MinScore int
}

// DefaultPolicy returns the standard policy: 8+ characters, all four
// character classes, score of at least 2.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:     8,
		RequireUpper:  true,
		RequireLower:  true,
		RequireDigit:  true,
		RequireSymbol: true,
		MinScore:      2,
	}
}

// ScoreMax is the top of the strength score scale.
const ScoreMax = 4

// Evaluation is the result of one policy run. Violations lists every failed
// rule; the slice is empty when Valid is true.
type Evaluation struct {
	Valid      bool
	Violations []string
	Score      int
	Entropy    float64
}

// Evaluate checks every rule independently so all violations are reported in
// a single pass. It is deterministic, allocation-light, and safe for
// concurrent use.
func (p Policy) Evaluate(candidate string) Evaluation {
	var violations []string
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	runes := []rune(candidate)

	for _, r := range runes {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	if len(runes) < p.MinLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}
	if p.RequireUpper && !hasUpper {
		violations = append(violations, "must contain an upper-case letter")
	}
	if p.RequireLower && !hasLower {
		violations = append(violations, "must contain a lower-case letter")
	}
	if p.RequireDigit && !hasDigit {
		violations = append(violations, "must contain a digit")
	}
	if p.RequireSymbol && !hasSymbol {
		violations = append(violations, "must contain a symbol")
	}

	entropy := estimateEntropy(runes, hasUpper, hasLower, hasDigit, hasSymbol)
	score := scoreFromEntropy(entropy)
	if score < p.MinScore {
		violations = append(violations, fmt.Sprintf("too predictable (strength %d of %d required)", score, p.MinScore))
	}

	return Evaluation{
		Valid:      len(violations) == 0,
		Violations: violations,
		Score:      score,
		Entropy:    entropy,
	}
}

// estimateEntropy approximates Shannon entropy from the effective character
// pool and length, with a penalty for repeated runs so "aaaaaaaa" does not
// score as eight independent draws.
func estimateEntropy(runes []rune, hasUpper, hasLower, hasDigit, hasSymbol bool) float64 {
	if len(runes) == 0 {
		return 0
	}

	pool := 0
	if hasUpper {
		pool += 26
	}
	if hasLower {
		pool += 26
	}
	if hasDigit {
		pool += 10
	}
	if hasSymbol {
		pool += 33
	}
	if pool == 0 {
		pool = 1
	}

	effective := 1.0
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			effective += 0.25
		} else {
			effective++
		}
	}

	return effective * math.Log2(float64(pool))
}

func scoreFromEntropy(bits float64) int {
	switch {
	case bits < 28:
		return 0
	case bits < 36:
		return 1
	case bits < 60:
		return 2
	case bits < 90:
		return 3
	default:
		return 4
	}
}
