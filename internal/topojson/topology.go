// Package topojson decodes TopoJSON topologies into feature collections.
package topojson

import (
	"bytes"
	"os"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Transform maps quantized positions back to coordinates.
type Transform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

// Apply returns the transformed position. A nil transform is the identity.
func (t *Transform) Apply(x, y float64) (float64, float64) {
	if t == nil {
		return x, y
	}
	return x*t.Scale[0] + t.Translate[0], y*t.Scale[1] + t.Translate[1]
}

// Topology is a parsed TopoJSON document.
type Topology struct {
	Type      string        `json:"type"`
	BBox      []float64     `json:"bbox,omitempty"`
	Transform *Transform    `json:"transform,omitempty"`
	Objects   Objects       `json:"objects"`
	Arcs      [][][]float64 `json:"arcs"`
}

// Object is a geometry object that references arcs instead of holding coordinates.
// Arcs and Coordinates are kept raw and interpreted according to Type.
type Object struct {
	Type        string          `json:"type"`
	ID          any             `json:"id,omitempty"`
	Properties  map[string]any  `json:"properties,omitempty"`
	Arcs        json.RawMessage `json:"arcs,omitempty"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Geometries  []*Object       `json:"geometries,omitempty"`
	BBox        []float64       `json:"bbox,omitempty"`
}

// NamedObject is one entry of the topology objects table.
type NamedObject struct {
	Name   string
	Object *Object
}

// Objects is the objects table in document order.
// A nil Objects means the member was absent from the document.
type Objects []NamedObject

// Get returns the object stored under name.
func (o Objects) Get(name string) (*Object, bool) {
	for _, n := range o {
		if n.Name == name {
			return n.Object, true
		}
	}
	return nil, false
}

// Names lists object names in document order.
func (o Objects) Names() []string {
	names := make([]string, 0, len(o))
	for _, n := range o {
		names = append(names, n.Name)
	}
	return names
}

// UnmarshalJSON reads the objects member keeping key order.
func (o *Objects) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("topojson: objects must be a JSON object")
	}

	out := Objects{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return errors.Errorf("topojson: unexpected objects key %v", tok)
		}

		obj := &Object{}
		if err := dec.Decode(obj); err != nil {
			return errors.Wrapf(err, "topojson: object %q", name)
		}
		out = append(out, NamedObject{Name: name, Object: obj})
	}

	*o = out
	return nil
}

// MarshalJSON writes the objects table keeping order.
func (o Objects) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(n.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(n.Object)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Parse reads a topology from its JSON text.
func Parse(data []byte) (*Topology, error) {
	var t Topology
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON", Err: err}
	}
	return &t, nil
}

// ParseFile reads and parses a topology file.
func ParseFile(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// FromMap converts an already parsed JSON mapping into a topology.
// Objects come out sorted by name.
func FromMap(m map[string]any) (*Topology, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, &DecodeError{Reason: "unserializable mapping", Err: err}
	}
	return Parse(data)
}
