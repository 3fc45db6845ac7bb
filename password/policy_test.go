package password

import (
	"strings"
	"testing"
)

func TestEvaluateAcceptsStrongPassword(t *testing.T) {
	eval := DefaultPolicy().Evaluate("Tr4verse!Mountain9")
	if !eval.Valid {
		t.Fatalf("expected valid, got violations %v", eval.Violations)
	}
	if eval.Score < 2 {
		t.Fatalf("expected score >= 2, got %d", eval.Score)
	}
}

// Every rule is evaluated independently: a short symbol-less password must
// report both failures in one pass, not just the first.
func TestEvaluateReportsAllViolations(t *testing.T) {
	eval := DefaultPolicy().Evaluate("short")
	if eval.Valid {
		t.Fatal("expected invalid")
	}

	joined := strings.Join(eval.Violations, "; ")
	for _, want := range []string{
		"at least 8 characters",
		"upper-case letter",
		"digit",
		"symbol",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing violation %q in %v", want, eval.Violations)
		}
	}
}

func TestEvaluateClassRules(t *testing.T) {
	cases := []struct {
		name      string
		candidate string
		want      string
	}{
		{"no upper", "tr4verse!mountain9", "upper-case"},
		{"no lower", "TR4VERSE!MOUNTAIN9", "lower-case"},
		{"no digit", "Traverse!Mountain", "digit"},
		{"no symbol", "Tr4verseMountain9", "symbol"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eval := DefaultPolicy().Evaluate(tc.candidate)
			if eval.Valid {
				t.Fatal("expected invalid")
			}
			if !strings.Contains(strings.Join(eval.Violations, "; "), tc.want) {
				t.Fatalf("missing %q violation in %v", tc.want, eval.Violations)
			}
		})
	}
}

func TestEvaluateRejectsPredictable(t *testing.T) {
	policy := Policy{MinLength: 8, MinScore: 3}

	eval := policy.Evaluate("aaaaaaaaaa")
	if eval.Valid {
		t.Fatal("expected repeated characters to score below 3")
	}
	if eval.Score >= 3 {
		t.Fatalf("expected low score, got %d", eval.Score)
	}
}

func TestEvaluateRepeatsScoreBelowDiverse(t *testing.T) {
	policy := Policy{MinLength: 1}

	repeated := policy.Evaluate("aaaaaaaaaaaaaaaa")
	diverse := policy.Evaluate("kq7wXp!2mZfR9vTc")
	if repeated.Entropy >= diverse.Entropy {
		t.Fatalf("repeated entropy %f >= diverse entropy %f", repeated.Entropy, diverse.Entropy)
	}
	if repeated.Score > diverse.Score {
		t.Fatalf("repeated score %d > diverse score %d", repeated.Score, diverse.Score)
	}
}

func TestZeroPolicyStillScores(t *testing.T) {
	var policy Policy
	eval := policy.Evaluate("anything")
	if eval.Score < 0 || eval.Score > ScoreMax {
		t.Fatalf("score out of range: %d", eval.Score)
	}
}
