package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/woozymasta/geoprep/internal/convert"
	"github.com/woozymasta/geoprep/internal/validate"
)

// examplesPerCode limits the findings printed per code in verbose mode.
const examplesPerCode = 3

// ValidateCommand converts one input and reports its geometry problems.
type ValidateCommand struct {
	InputOptions `group:"Input options"`

	NoCoordinates bool   `long:"no-coordinates" description:"Skip coordinate range checks"`
	NoWinding     bool   `long:"no-winding"     description:"Skip ring orientation checks"`
	NoDuplicates  bool   `long:"no-duplicates"  description:"Skip duplicate vertex checks"`
	NoClosure     bool   `long:"no-closure"     description:"Skip ring closure checks"`
	Intersections bool   `long:"intersections"  description:"Check rings and lines for self-intersections"`
	MaxWarnings   int    `long:"max-warnings"   description:"Maximum reported findings, 0 for unlimited" default:"100"`
	Format        string `short:"f" long:"format" description:"Report format" choice:"text" choice:"json" choice:"yaml" default:"text"`
	Verbose       bool   `short:"v" long:"verbose" description:"Print example findings for every code"`
	Strict        bool   `long:"strict"         description:"Fail on warnings too"`

	out io.Writer
}

type validateReport struct {
	Input      string           `json:"input" yaml:"input"`
	Format     string           `json:"format" yaml:"format"`
	Conversion []string         `json:"conversion_warnings" yaml:"conversion_warnings"`
	Validation *validate.Result `json:"validation" yaml:"validation"`
}

// Options maps the command flags to validator options.
func (c *ValidateCommand) Options() validate.Options {
	return validate.Options{
		CheckCoordinates:   !c.NoCoordinates,
		CheckWinding:       !c.NoWinding,
		CheckDuplicates:    !c.NoDuplicates,
		CheckClosure:       !c.NoClosure,
		CheckIntersections: c.Intersections,
		MaxWarnings:        c.MaxWarnings,
	}
}

// Execute implements flags.Commander.
func (c *ValidateCommand) Execute([]string) error {
	if c.MaxWarnings < 0 {
		return errors.New("max-warnings must not be negative")
	}

	res, err := c.load(context.Background())
	if err != nil {
		return err
	}
	return c.report(res)
}

func (c *ValidateCommand) report(res *convert.Result) error {
	v := validate.Validate(res.Collection, c.Options())
	rep := validateReport{
		Input:      c.Input,
		Format:     res.SourceFormat,
		Conversion: res.Warnings,
		Validation: v,
	}

	err := render(output(c.out), c.Format, rep, func(w io.Writer) error {
		fmt.Fprintf(w, "Input: %s (%s)\n", rep.Input, rep.Format)
		for _, cw := range rep.Conversion {
			fmt.Fprintf(w, "Conversion warning: %s\n", cw)
		}
		fmt.Fprintln(w, v.Summary())
		if c.Verbose {
			printExamples(w, v)
		}
		return nil
	})
	if err != nil {
		return err
	}

	switch {
	case !v.Valid:
		return errors.Errorf("%s: %d of %d features invalid", c.Input, v.FeatureCount-v.ValidFeatureCount, v.FeatureCount)
	case c.Strict && (v.WarningCount() > 0 || v.Suppressed > 0):
		return errors.Errorf("%s: %d warnings in strict mode", c.Input, v.WarningCount())
	}
	return nil
}

func printExamples(w io.Writer, v *validate.Result) {
	counts := make(map[validate.Code]int)
	var order []validate.Code
	for _, f := range v.Warnings {
		if counts[f.Code] == 0 {
			order = append(order, f.Code)
		}
		counts[f.Code]++
	}

	for _, code := range order {
		fmt.Fprintf(w, "\n%s (%s):\n", code, code.Severity())
		for i, f := range v.ByCode(code) {
			if i == examplesPerCode {
				fmt.Fprintf(w, "  ... and %d more\n", counts[code]-examplesPerCode)
				break
			}
			if f.FeatureIndex < 0 {
				fmt.Fprintf(w, "  %s\n", f.Message)
				continue
			}
			fmt.Fprintf(w, "  feature %d: %s\n", f.FeatureIndex, f.Message)
		}
	}
}
