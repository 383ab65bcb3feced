package flatgeobuf

import (
	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
)

func decodeGeometry(g *geometryTable, t GeometryType, hasZ bool) (geom.T, error) {
	if t == Unknown {
		t = g.geometryType()
	}

	switch t {
	case MultiPolygon:
		mp := geom.NewMultiPolygon(geom.XY)
		for i := 0; i < g.partsLength(); i++ {
			part, err := decodeGeometry(g.part(i), Polygon, hasZ)
			if err != nil {
				return nil, err
			}
			poly := part.(*geom.Polygon)
			if i == 0 {
				mp = geom.NewMultiPolygon(poly.Layout())
			}
			if err := mp.Push(poly); err != nil {
				return nil, errors.Wrap(ErrInvalidData, err.Error())
			}
		}
		if g.partsLength() == 0 && len(g.xy()) > 0 {
			// single polygon stored without parts
			part, err := decodeGeometry(g, Polygon, hasZ)
			if err != nil {
				return nil, err
			}
			poly := part.(*geom.Polygon)
			mp = geom.NewMultiPolygonFlat(poly.Layout(), poly.FlatCoords(), [][]int{poly.Ends()})
		}
		return mp, nil

	case GeometryCollection:
		gc := geom.NewGeometryCollection()
		for i := 0; i < g.partsLength(); i++ {
			part, err := decodeGeometry(g.part(i), Unknown, hasZ)
			if err != nil {
				return nil, err
			}
			gc.MustPush(part)
		}
		return gc, nil
	}

	xy := g.xy()
	if len(xy)%2 != 0 {
		return nil, errors.Wrapf(ErrInvalidData, "odd xy length %d", len(xy))
	}

	layout := geom.XY
	z := g.z()
	if hasZ && len(z)*2 == len(xy) && len(z) > 0 {
		layout = geom.XYZ
	}
	stride := layout.Stride()

	n := len(xy) / 2
	flat := make([]float64, 0, n*stride)
	for i := 0; i < n; i++ {
		flat = append(flat, xy[2*i], xy[2*i+1])
		if stride == 3 {
			flat = append(flat, z[i])
		}
	}

	switch t {
	case Point:
		if n == 0 {
			return geom.NewPointEmpty(layout), nil
		}
		return geom.NewPointFlat(layout, flat[:stride]), nil
	case MultiPoint:
		return geom.NewMultiPointFlat(layout, flat), nil
	case LineString:
		return geom.NewLineStringFlat(layout, flat), nil
	case MultiLineString:
		ends, err := flatEnds(g.ends(), n, stride)
		if err != nil {
			return nil, err
		}
		return geom.NewMultiLineStringFlat(layout, flat, ends), nil
	case Polygon:
		ends, err := flatEnds(g.ends(), n, stride)
		if err != nil {
			return nil, err
		}
		return geom.NewPolygonFlat(layout, flat, ends), nil
	}

	return nil, errors.Wrapf(ErrUnsupportedType, "%s", t)
}

// flatEnds converts point-count ends into flat coordinate offsets.
func flatEnds(ends []uint32, numPoints, stride int) ([]int, error) {
	if len(ends) == 0 {
		if numPoints == 0 {
			return nil, nil
		}
		return []int{numPoints * stride}, nil
	}

	out := make([]int, len(ends))
	prev := 0
	for i, e := range ends {
		if int(e) < prev || int(e) > numPoints {
			return nil, errors.Wrapf(ErrInvalidData, "ring end %d out of range", e)
		}
		out[i] = int(e) * stride
		prev = int(e)
	}
	return out, nil
}
