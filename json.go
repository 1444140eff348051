package mapper

import "encoding/json"

// marshalJSONAlias is a small helper used by wire types whose
// MarshalJSON method fills in a constant discriminator field before
// delegating to the default struct encoding via a type alias (to avoid
// infinite recursion into the custom MarshalJSON).
func marshalJSONAlias(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// unmarshalJSONInto decodes a BiDi wire frame's plain JSON into out.
// BiDi's outer envelope (id/method/params) is ordinary JSON, unlike the
// CDP envelope which uses easyjson; only CDP messages need the
// allocation-light easyjson path.
func unmarshalJSONInto(raw []byte, out interface{}) error {
	return json.Unmarshal(raw, out)
}
