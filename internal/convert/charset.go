package convert

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// lookupEncoding resolves a character set label, as found in .cpg files or
// XML declarations. Bare numbers are Windows code pages.
func lookupEncoding(label string) (encoding.Encoding, error) {
	label = strings.TrimSpace(label)
	switch strings.ToLower(label) {
	case "", "utf8", "65001":
		label = "utf-8"
	default:
		if strings.Trim(label, "0123456789") == "" {
			label = "windows-" + label
		}
	}

	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, errors.Wrapf(err, "character set %q", label)
	}
	if enc == nil {
		return nil, errors.Errorf("character set %q is not supported", label)
	}
	return enc, nil
}

// xmlCharsetReader lets encoding/xml read documents declared in legacy encodings.
func xmlCharsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := lookupEncoding(label)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(input), nil
}
