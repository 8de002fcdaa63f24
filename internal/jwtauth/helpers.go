package jwtauth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

func decodeHeader(segment string) (map[string]interface{}, error) {
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil, fmt.Errorf("decode header segment: %w", err)
	}

	var header map[string]interface{}
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("unmarshal header json: %w", err)
	}
	return header, nil
}
