package convert

import (
	"context"
	"strings"

	"github.com/woozymasta/geoprep/internal/topojson"
)

// TopoJSON decodes TopoJSON topologies.
type TopoJSON struct{}

// Info implements Converter.
func (TopoJSON) Info() FormatInfo {
	return FormatInfo{
		Name:       "TopoJSON",
		Extensions: []string{".topojson"},
		MIMETypes:  []string{"application/topo+json"},
		Available:  true,
	}
}

// Convert implements Converter.
func (c TopoJSON) Convert(ctx context.Context, src Source, opts Options) (*Result, error) {
	name := c.Info().Name

	topo, err := topologyOf(src)
	if err != nil {
		return nil, conversionErrorf(name, err, "parse topology")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var decodeOpts []topojson.Option
	if opts.Object != "" {
		decodeOpts = append(decodeOpts, topojson.WithObject(opts.Object))
	}

	fc, err := topojson.Decode(topo, decodeOpts...)
	if err != nil {
		return nil, conversionErrorf(name, err, "decode topology")
	}

	res := newResult(name)
	for _, f := range fc.Features {
		res.add(f)
	}

	names := topo.Objects.Names()
	if opts.Object == "" && len(names) > 1 {
		res.warnf("Decoded %d objects: %s", len(names), strings.Join(names, ", "))
	}
	res.Metadata["objects"] = names
	res.Metadata["arcs"] = len(topo.Arcs)
	if opts.Object != "" {
		res.Metadata["object"] = opts.Object
	}

	return res, nil
}

func topologyOf(src Source) (*topojson.Topology, error) {
	if v, ok := src.Value(); ok {
		switch v := v.(type) {
		case *topojson.Topology:
			return v, nil
		case map[string]any:
			return topojson.FromMap(v)
		}
		return nil, conversionErrorf("TopoJSON", nil, "unsupported value %T", v)
	}

	data, err := src.ReadAll()
	if err != nil {
		return nil, err
	}
	return topojson.Parse(data)
}
