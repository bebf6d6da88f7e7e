package manifest

import (
	"encoding/json"
	"fmt"
)

// Decode parses a JSON-encoded UpdateInfo from data. Callers are expected to
// have already read data through signedstream.OpenVerifying — this function
// performs no trust decisions of its own.
func Decode(data []byte) (*UpdateInfo, error) {
	var info UpdateInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return &info, nil
}

// Encode renders an UpdateInfo as JSON, ready to be written through
// signedstream.CreateSigned.
func Encode(info *UpdateInfo) ([]byte, error) {
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return data, nil
}
