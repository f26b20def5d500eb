// Package junitxml reads completed JUnit-style XML result documents written
// by worker processes. Only reading is in scope; the format is authored by
// the workers themselves.
package junitxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/parabatch/parabatch/types"
)

// MalformedResultError reports a result file that is absent, empty, or not a
// well-formed result document. The scheduler uses it to classify a fatal
// per-batch failure.
type MalformedResultError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *MalformedResultError) Error() string {
	return fmt.Sprintf("malformed result document %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *MalformedResultError) Unwrap() error {
	return e.Err
}

// IsMalformedResult returns true if the error marks an unreadable or
// unparsable result document.
func IsMalformedResult(err error) bool {
	var target *MalformedResultError
	return errors.As(err, &target)
}

// Document is the parsed, immutable view of one batch's completed output.
type Document struct {
	// SuiteName is the name attribute of the outermost suite, when present.
	SuiteName string
	// Cases holds per-test outcomes in document order, nested suites
	// flattened depth-first.
	Cases []types.CaseOutcome
	// Totals are derived by walking Cases, so aggregate attributes on
	// nested testsuite elements cannot double-count.
	Totals Totals
}

// Totals are the suite-level counters of a result document.
type Totals struct {
	Tests      int
	Assertions int
	Failures   int
	Errors     int
}

// testSuites is the optional <testsuites> root wrapper.
type testSuites struct {
	XMLName xml.Name    `xml:"testsuites"`
	Suites  []testSuite `xml:"testsuite"`
}

type testSuite struct {
	XMLName xml.Name    `xml:"testsuite"`
	Name    string      `xml:"name,attr"`
	Tests   int         `xml:"tests,attr"`
	Suites  []testSuite `xml:"testsuite"`
	Cases   []testCase  `xml:"testcase"`
}

type testCase struct {
	XMLName    xml.Name     `xml:"testcase"`
	Classname  string       `xml:"classname,attr"`
	Name       string       `xml:"name,attr"`
	Assertions int          `xml:"assertions,attr"`
	Time       float64      `xml:"time,attr"`
	Failure    *caseMessage `xml:"failure"`
	Error      *caseMessage `xml:"error"`
	Skipped    *caseMessage `xml:"skipped"`
	Incomplete *caseMessage `xml:"incomplete"`
}

type caseMessage struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// ParseFile reads and parses the result document at path. The file must be
// complete; workers write it before exiting and nothing reads it mid-write.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &MalformedResultError{Path: path, Err: err}
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, &MalformedResultError{Path: path, Err: err}
	}
	return doc, nil
}

// Parse parses a complete result document from memory.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("document is empty")
	}

	// A document is either a <testsuites> wrapper or a single <testsuite>
	// root. Try the wrapper first.
	var suites []testSuite
	var wrapper testSuites
	if err := xml.Unmarshal(data, &wrapper); err == nil {
		suites = wrapper.Suites
	} else {
		var single testSuite
		if err := xml.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("decoding result XML: %w", err)
		}
		suites = []testSuite{single}
	}

	doc := &Document{}
	if len(suites) > 0 {
		doc.SuiteName = suites[0].Name
	}
	for i := range suites {
		collectCases(&suites[i], doc)
	}
	return doc, nil
}

// collectCases flattens a suite tree depth-first, preserving document order.
func collectCases(s *testSuite, doc *Document) {
	for _, c := range s.Cases {
		outcome := classifyCase(c)
		doc.Cases = append(doc.Cases, outcome)
		doc.Totals.Tests++
		doc.Totals.Assertions += outcome.Assertions
		switch outcome.Status {
		case types.CaseStatusFail:
			doc.Totals.Failures++
		case types.CaseStatusError:
			doc.Totals.Errors++
		}
	}
	for i := range s.Suites {
		collectCases(&s.Suites[i], doc)
	}
}

// classifyCase maps one testcase element to a case outcome. An error child
// wins over a failure child, mirroring how workers report setup crashes.
func classifyCase(c testCase) types.CaseOutcome {
	out := types.CaseOutcome{
		Name:       caseName(c),
		Status:     types.CaseStatusPass,
		Assertions: c.Assertions,
	}
	switch {
	case c.Error != nil:
		out.Status = types.CaseStatusError
		out.Message = messageText(c.Error)
	case c.Failure != nil:
		out.Status = types.CaseStatusFail
		out.Message = messageText(c.Failure)
	case c.Incomplete != nil:
		out.Status = types.CaseStatusIncomplete
		out.Message = messageText(c.Incomplete)
	case c.Skipped != nil:
		out.Status = types.CaseStatusSkip
		out.Message = messageText(c.Skipped)
	}
	return out
}

func caseName(c testCase) string {
	if c.Classname != "" && c.Name != "" {
		return c.Classname + "::" + c.Name
	}
	if c.Name != "" {
		return c.Name
	}
	return c.Classname
}

// messageText prefers the element body over the message attribute, since
// workers put the full diagnostic (message plus location) in the body.
func messageText(m *caseMessage) string {
	if text := strings.TrimSpace(m.Content); text != "" {
		return text
	}
	return m.Message
}
