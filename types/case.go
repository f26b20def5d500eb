package types

// CaseStatus represents the possible outcomes of a single test case
type CaseStatus string

const (
	CaseStatusPass       CaseStatus = "pass"
	CaseStatusFail       CaseStatus = "fail"
	CaseStatusError      CaseStatus = "error"
	CaseStatusSkip       CaseStatus = "skip"
	CaseStatusIncomplete CaseStatus = "incomplete"
)

// String implements the Stringer interface for CaseStatus
func (s CaseStatus) String() string {
	return string(s)
}

// Glyph returns the single-character progress marker for the status.
func (s CaseStatus) Glyph() byte {
	switch s {
	case CaseStatusFail:
		return 'F'
	case CaseStatusError:
		return 'E'
	case CaseStatusSkip:
		return 'S'
	case CaseStatusIncomplete:
		return 'I'
	default:
		return '.'
	}
}

// CountsAsSkipped reports whether the status participates in
// skipped/incomplete accounting.
func (s CaseStatus) CountsAsSkipped() bool {
	return s == CaseStatusSkip || s == CaseStatusIncomplete
}

// WarningGlyph marks an externally supplied warning in the progress stream.
const WarningGlyph byte = 'W'

// CaseOutcome is one test case's result as reported by a worker.
type CaseOutcome struct {
	Name       string
	Status     CaseStatus
	Message    string
	Assertions int
}
