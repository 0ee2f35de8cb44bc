package ring

import (
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
)

// MarshalJSON encodes an Id as a lowercase hex string, matching the
// wire format's {id: hex} convention.
func (a Id) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(a[:]))
}

// UnmarshalJSON decodes a hex-encoded Id.
func (a *Id) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	id, err := ParseId(s)
	if err != nil {
		return errors.Wrap(err, "ring: decoding id")
	}
	*a = id
	return nil
}
