// Package records talks to the upstream arbitros REST API that owns the
// records. The gateway never stores records itself.
package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// AssetField is the JSON field holding a record's image URL.
const AssetField = "imagen"

// Record is an upstream arbitro. Only the id and the image reference are
// interpreted; every other field is carried through verbatim.
type Record struct {
	ID     int64
	Imagen *string
	Fields map[string]json.RawMessage
}

// HasAsset reports whether the record references an image.
func (r Record) HasAsset() bool { return r.Imagen != nil && *r.Imagen != "" }

// AssetURL returns the image reference or "".
func (r Record) AssetURL() string {
	if r.Imagen == nil {
		return ""
	}
	return *r.Imagen
}

// WithAsset returns the full update body for r with the image reference
// replaced; a nil ref clears it. Sending the whole record keeps the update
// correct whether the upstream merges or replaces on PUT.
func (r Record) WithAsset(ref *string) map[string]any {
	body := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		body[k] = v
	}
	body["id"] = r.ID
	if ref == nil {
		body[AssetField] = nil
	} else {
		body[AssetField] = *ref
	}
	return body
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("record: expected JSON object")
	}
	out := Record{Fields: make(map[string]json.RawMessage, len(raw))}
	for k, v := range raw {
		switch k {
		case "id":
			if err := json.Unmarshal(v, &out.ID); err != nil {
				return fmt.Errorf("record id: %w", err)
			}
		case AssetField:
			if isNull(v) {
				continue
			}
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("record %s: %w", AssetField, err)
			}
			if s != "" {
				out.Imagen = &s
			}
		default:
			out.Fields[k] = v
		}
	}
	*r = out
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	fmt.Fprintf(&buf, "%d", r.ID)
	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(r.Fields[k])
	}
	buf.WriteString(`,"` + AssetField + `":`)
	if r.Imagen == nil {
		buf.WriteString("null")
	} else {
		ref, err := json.Marshal(*r.Imagen)
		if err != nil {
			return nil, err
		}
		buf.Write(ref)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || string(bytes.TrimSpace(v)) == "null"
}
