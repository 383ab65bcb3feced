package convert

import (
	"bytes"
	"context"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-gpx"

	"github.com/woozymasta/geoprep/internal/geo"
)

// GPX reads GPS exchange files.
type GPX struct{}

// Info implements Converter.
func (GPX) Info() FormatInfo {
	return FormatInfo{
		Name:       "GPX",
		Extensions: []string{".gpx"},
		MIMETypes:  []string{"application/gpx+xml"},
		Available:  true,
	}
}

// Convert implements Converter.
func (c GPX) Convert(ctx context.Context, src Source, opts Options) (*Result, error) {
	name := c.Info().Name

	if _, ok := src.Value(); ok {
		return nil, conversionErrorf(name, nil, "GPX can only be read from files or bytes")
	}
	data, err := src.ReadAll()
	if err != nil {
		return nil, conversionErrorf(name, err, "read source")
	}

	doc, err := gpx.Read(bytes.NewReader(data))
	if err != nil {
		return nil, conversionErrorf(name, err, "parse GPX")
	}

	res := newResult(name)
	var waypoints, routes, tracks int

	if !opts.SkipWaypoints {
		for _, w := range doc.Wpt {
			props := map[string]any{"type": "waypoint"}
			setString(props, "name", w.Name)
			setString(props, "description", w.Desc)
			if w.Ele != 0 {
				props["elevation"] = w.Ele
			}
			if !w.Time.IsZero() {
				props["time"] = w.Time.Format(time.RFC3339)
			}

			res.add(&geo.Feature{
				Geometry:   w.Geom(gpxLayout(w)),
				Properties: props,
			})
			waypoints++
		}
	}

	if !opts.SkipRoutes {
		for _, r := range doc.Rte {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if len(r.RtePt) == 0 {
				res.warnf("Empty route '%s' skipped", r.Name)
				continue
			}

			props := map[string]any{"type": "route"}
			setString(props, "name", r.Name)
			setString(props, "description", r.Desc)

			res.add(&geo.Feature{
				Geometry:   r.Geom(gpxLayout(r.RtePt...)),
				Properties: props,
			})
			routes++
		}
	}

	if !opts.SkipTracks {
		for _, t := range doc.Trk {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for i, seg := range t.TrkSeg {
				if len(seg.TrkPt) == 0 {
					res.warnf("Empty track segment in '%s' skipped", t.Name)
					continue
				}

				props := map[string]any{"type": "track", "segment": i}
				setString(props, "name", t.Name)
				setString(props, "description", t.Desc)
				trackStats(props, seg.TrkPt)

				res.add(&geo.Feature{
					Geometry:   seg.Geom(gpxLayout(seg.TrkPt...)),
					Properties: props,
				})
				tracks++
			}
		}
	}

	if res.FeatureCount == 0 {
		res.warnf("No features found in GPX file")
	}
	res.Metadata["waypoints"] = waypoints
	res.Metadata["routes"] = routes
	res.Metadata["tracks"] = tracks

	return res, nil
}

// trackStats adds start, end and duration of a segment with at least two
// timestamped points.
func trackStats(props map[string]any, points []*gpx.WptType) {
	var times []time.Time
	for _, p := range points {
		if !p.Time.IsZero() {
			times = append(times, p.Time)
		}
	}
	if len(times) < 2 {
		return
	}

	start, end := times[0], times[len(times)-1]
	props["start_time"] = start.Format(time.RFC3339)
	props["end_time"] = end.Format(time.RFC3339)
	props["duration_seconds"] = end.Sub(start).Seconds()
}

// gpxLayout is XYZ only when every point carries an elevation. A missing
// <ele> decodes as zero, so zero counts as absent.
func gpxLayout(points ...*gpx.WptType) geom.Layout {
	for _, p := range points {
		if p.Ele == 0 {
			return geom.XY
		}
	}
	return geom.XYZ
}

func setString(props map[string]any, key, value string) {
	if value != "" {
		props[key] = value
	}
}
