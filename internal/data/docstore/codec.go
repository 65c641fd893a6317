package docstore

import (
	"github.com/goccy/go-json"
)

// Encode renders v (a struct or map) as a Document.
func Encode(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return unmarshalDocument(b)
}

// Decode fills out from doc through its JSON form.
func Decode(doc Document, out any) error {
	if doc == nil {
		doc = Document{}
	}
	b, err := json.Marshal(map[string]any(doc))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// Normalize returns doc in canonical JSON form: times become RFC 3339 strings
// and numbers become float64.
func Normalize(doc Document) (Document, error) {
	if doc == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(doc))
	if err != nil {
		return nil, err
	}
	return unmarshalDocument(b)
}

func marshalDocument(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	return json.Marshal(map[string]any(doc))
}

func unmarshalDocument(b []byte) (Document, error) {
	if len(b) == 0 {
		return Document{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return Document(m), nil
}
