package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/woozymasta/geoprep/internal/convert"
)

// FormatsCommand lists the registered formats.
type FormatsCommand struct {
	Format string `short:"f" long:"format" description:"Output format" choice:"text" choice:"json" choice:"yaml" default:"text"`

	out io.Writer
}

// Execute implements flags.Commander.
func (c *FormatsCommand) Execute([]string) error {
	formats := convert.Default().Formats()

	return render(output(c.out), c.Format, formats, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tEXTENSIONS\tAVAILABLE\tREQUIRES")
		for _, f := range formats {
			requires := "-"
			if !f.Available {
				requires = f.Requires
			}
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", f.Name, strings.Join(f.Extensions, " "), f.Available, requires)
		}
		return tw.Flush()
	})
}
