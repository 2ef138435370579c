package models

// Verdict is the expected classification for a test case.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictPass, VerdictFail:
		return true
	}
	return false
}

// ActualVerdict is a verdict produced by the judge during evaluation.
// ERROR means the judge failed to produce a usable verdict for the case.
type ActualVerdict string

const (
	ActualPass  ActualVerdict = "PASS"
	ActualFail  ActualVerdict = "FAIL"
	ActualError ActualVerdict = "ERROR"
)

func (v ActualVerdict) Valid() bool {
	switch v {
	case ActualPass, ActualFail, ActualError:
		return true
	}
	return false
}

// Split marks which partition a test case landed in after optimization.
// The empty string means the dataset has not been split.
type Split string

const (
	SplitTrain Split = "train"
	SplitTest  Split = "test"
)

// TestCase is one labeled input used to score a judge.
type TestCase struct {
	ID              string  `json:"id"`
	InputText       string  `json:"input_text"`
	ExpectedVerdict Verdict `json:"expected_verdict"`
	Reasoning       string  `json:"reasoning"`
	Verified        bool    `json:"verified"`
	Split           Split   `json:"split,omitempty"`
}

// NewTestCase creates a manually entered, unverified test case.
func NewTestCase(id, inputText string, expected Verdict, reasoning string) *TestCase {
	return &TestCase{
		ID:              id,
		InputText:       inputText,
		ExpectedVerdict: expected,
		Reasoning:       reasoning,
	}
}
