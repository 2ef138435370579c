package models

import (
	"math"
	"time"
)

// EvaluationResult is the judge's verdict for a single test case.
// Immutable once produced by a run. Correct is true iff the actual
// verdict equals the referenced case's expected verdict; ERROR is
// always incorrect.
type EvaluationResult struct {
	TestCaseID    string        `json:"test_case_id"`
	ActualVerdict ActualVerdict `json:"actual_verdict"`
	Reasoning     string        `json:"reasoning"`
	Correct       bool          `json:"correct"`
}

// RunStats aggregates the outcome of one evaluation run.
// Invariants: Total == Passed+Failed+Errors and len(Results) == Total.
type RunStats struct {
	Total      int                `json:"total"`
	Passed     int                `json:"passed"`
	Failed     int                `json:"failed"`
	Errors     int                `json:"errors"`
	Accuracy   float64            `json:"accuracy"`
	CohenKappa float64            `json:"cohen_kappa"`
	Results    []EvaluationResult `json:"results"`
}

// Consistent reports whether the aggregate counters agree with the
// per-case results.
func (s RunStats) Consistent() bool {
	return s.Total == s.Passed+s.Failed+s.Errors && len(s.Results) == s.Total
}

// Run is one evaluation of a test-case set against one prompt version
// and model. Immutable once created; run history is append-only.
type Run struct {
	ID              string    `json:"id"`
	PromptVersionID string    `json:"promptVersionId"`
	ModelName       string    `json:"modelName"`
	CreatedAt       time.Time `json:"createdAt"`
	Stats           RunStats  `json:"stats"`
}

// ComputeRunStats assembles RunStats from per-case results, matching
// the aggregation the evaluation service performs: Passed counts
// correct results, Errors counts ERROR verdicts, accuracy is the
// percentage of correct results rounded to two decimals.
func ComputeRunStats(results []EvaluationResult, testCases []*TestCase) RunStats {
	total := len(results)
	passed := 0
	errs := 0
	for _, r := range results {
		if r.Correct {
			passed++
		}
		if r.ActualVerdict == ActualError {
			errs++
		}
	}
	failed := total - passed - errs

	accuracy := 0.0
	if total > 0 {
		accuracy = math.Round(float64(passed)/float64(total)*100*100) / 100
	}

	return RunStats{
		Total:      total,
		Passed:     passed,
		Failed:     failed,
		Errors:     errs,
		Accuracy:   accuracy,
		CohenKappa: CohenKappa(results, testCases),
		Results:    results,
	}
}

// CohenKappa computes Cohen's Kappa between judge verdicts and
// expected verdicts: kappa = (p_o - p_e) / (1 - p_e), where p_o is
// observed agreement and p_e is agreement expected by chance. ERROR
// results and results without a matching test case are excluded.
func CohenKappa(results []EvaluationResult, testCases []*TestCase) float64 {
	lookup := make(map[string]*TestCase, len(testCases))
	for _, tc := range testCases {
		lookup[tc.ID] = tc
	}

	// Confusion matrix over (actual, expected) verdict pairs.
	var pp, pf, fp, ff int
	for _, r := range results {
		if r.ActualVerdict == ActualError {
			continue
		}
		tc, ok := lookup[r.TestCaseID]
		if !ok {
			continue
		}
		switch {
		case r.ActualVerdict == ActualPass && tc.ExpectedVerdict == VerdictPass:
			pp++
		case r.ActualVerdict == ActualPass && tc.ExpectedVerdict == VerdictFail:
			pf++
		case r.ActualVerdict == ActualFail && tc.ExpectedVerdict == VerdictPass:
			fp++
		case r.ActualVerdict == ActualFail && tc.ExpectedVerdict == VerdictFail:
			ff++
		}
	}

	n := pp + pf + fp + ff
	if n == 0 {
		return 0
	}

	po := float64(pp+ff) / float64(n)

	actualPass := pp + pf
	actualFail := fp + ff
	expectedPass := pp + fp
	expectedFail := pf + ff
	pe := float64(actualPass*expectedPass+actualFail*expectedFail) / float64(n*n)

	if pe == 1.0 {
		// Degenerate case: every marginal agrees by construction.
		if po == 1.0 {
			return 1.0
		}
		return 0.0
	}

	return (po - pe) / (1 - pe)
}
