package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxBodyBytes caps request and response bodies read by the codec.
const maxBodyBytes = 1 << 20

// DecodeBody reads a JSON object from r into v.
// An empty body leaves v untouched, matching the admin's habit of posting
// bodiless beats.
func DecodeBody(r io.Reader, v any) error {
	decoder := json.NewDecoder(io.LimitReader(r, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode body: %w", err)
	}
	return nil
}

// EncodeReturn serializes a ReturnT to w.
func EncodeReturn(w io.Writer, ret ReturnT) error {
	if err := json.NewEncoder(w).Encode(ret); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return nil
}

// DecodeReturn reads a ReturnT envelope answered by the admin.
func DecodeReturn(r io.Reader) (*ReturnT, []byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) == 0 {
		return nil, data, fmt.Errorf("admin produced an empty response")
	}

	var ret ReturnT
	if err := json.Unmarshal(data, &ret); err != nil {
		return nil, data, fmt.Errorf("admin response is not valid JSON: %w", err)
	}
	if ret.Code == 0 {
		return nil, data, fmt.Errorf("response missing required field: code")
	}
	return &ret, data, nil
}
