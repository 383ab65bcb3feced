package validate

import (
	"fmt"
	"sort"
	"strings"
)

// Severity grades a finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Code identifies the kind of finding.
type Code string

const (
	CodeNullGeometry                 Code = "null_geometry"
	CodeNullProperties               Code = "null_properties"
	CodeEmptyGeometry                Code = "empty_geometry"
	CodeInvalidCoordinate            Code = "invalid_coordinate"
	CodeOutOfBounds                  Code = "out_of_bounds"
	CodeInsufficientCoordinates      Code = "insufficient_coordinates"
	CodeDuplicateVertices            Code = "duplicate_vertices"
	CodeEmptyPolygon                 Code = "empty_polygon"
	CodeUnclosedRing                 Code = "unclosed_ring"
	CodeWrongWinding                 Code = "wrong_winding"
	CodeSelfIntersection             Code = "self_intersection"
	CodeSelfTouching                 Code = "self_touching"
	CodeIntersectionCheckUnavailable Code = "intersection_check_unavailable"
)

var severities = map[Code]Severity{
	CodeNullGeometry:                 SeverityWarning,
	CodeNullProperties:               SeverityInfo,
	CodeEmptyGeometry:                SeverityWarning,
	CodeInvalidCoordinate:            SeverityError,
	CodeOutOfBounds:                  SeverityWarning,
	CodeInsufficientCoordinates:      SeverityError,
	CodeDuplicateVertices:            SeverityInfo,
	CodeEmptyPolygon:                 SeverityError,
	CodeUnclosedRing:                 SeverityError,
	CodeWrongWinding:                 SeverityWarning,
	CodeSelfIntersection:             SeverityWarning,
	CodeSelfTouching:                 SeverityWarning,
	CodeIntersectionCheckUnavailable: SeverityWarning,
}

// Severity returns the severity findings of this code are reported with.
func (c Code) Severity() Severity {
	if s, ok := severities[c]; ok {
		return s
	}
	return SeverityWarning
}

// Warning is a single finding. FeatureIndex is -1 for findings that do not
// belong to a feature.
type Warning struct {
	FeatureIndex int            `json:"feature_index" yaml:"feature_index"`
	FeatureID    any            `json:"feature_id,omitempty" yaml:"feature_id,omitempty"`
	Severity     Severity       `json:"severity" yaml:"severity"`
	Code         Code           `json:"code" yaml:"code"`
	Message      string         `json:"message" yaml:"message"`
	Details      map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

// Result is the outcome of a validation run.
type Result struct {
	// Valid is false when any error was detected, reported or suppressed.
	Valid             bool      `json:"valid" yaml:"valid"`
	FeatureCount      int       `json:"feature_count" yaml:"feature_count"`
	ValidFeatureCount int       `json:"valid_feature_count" yaml:"valid_feature_count"`
	Warnings          []Warning `json:"warnings" yaml:"warnings"`
	// Suppressed counts findings dropped once MaxWarnings was reached.
	Suppressed int `json:"suppressed,omitempty" yaml:"suppressed,omitempty"`
}

func (r *Result) count(s Severity) int {
	n := 0
	for _, w := range r.Warnings {
		if w.Severity == s {
			n++
		}
	}
	return n
}

// ErrorCount returns the number of reported error findings.
func (r *Result) ErrorCount() int { return r.count(SeverityError) }

// WarningCount returns the number of reported warning findings.
func (r *Result) WarningCount() int { return r.count(SeverityWarning) }

// ByCode returns the reported findings with the given code.
func (r *Result) ByCode(code Code) []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if w.Code == code {
			out = append(out, w)
		}
	}
	return out
}

// Summary renders a short human readable report grouped by code.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Validated %d features\n", r.FeatureCount)
	fmt.Fprintf(&b, "  Valid: %d\n", r.ValidFeatureCount)
	fmt.Fprintf(&b, "  Warnings: %d\n", r.WarningCount())
	fmt.Fprintf(&b, "  Errors: %d", r.ErrorCount())
	if r.Suppressed > 0 {
		fmt.Fprintf(&b, "\n  Suppressed: %d", r.Suppressed)
	}

	if len(r.Warnings) == 0 {
		return b.String()
	}

	counts := make(map[Code]int)
	for _, w := range r.Warnings {
		counts[w.Code]++
	}
	codes := make([]string, 0, len(counts))
	for c := range counts {
		codes = append(codes, string(c))
	}
	sort.Strings(codes)

	b.WriteString("\n\nIssues found:")
	for _, c := range codes {
		fmt.Fprintf(&b, "\n  - %s: %d", c, counts[Code(c)])
	}
	return b.String()
}
