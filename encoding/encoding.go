// Package encoding provides transport encoding for signed orders.
// It handles base64 and JSON marshaling of order envelopes so they can
// travel in single header or tool-argument values.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	dcvx "github.com/dcentralverse/dcvx-go"
)

// EncodeOrder converts a SignedOrder to a base64-encoded JSON string.
//
// Returns an error if JSON marshaling fails.
func EncodeOrder(order dcvx.SignedOrder) (string, error) {
	orderJSON, err := json.Marshal(order)
	if err != nil {
		return "", fmt.Errorf("failed to marshal order: %w", err)
	}
	return base64.StdEncoding.EncodeToString(orderJSON), nil
}

// DecodeOrder converts a base64-encoded JSON string back to a
// SignedOrder.
//
// Returns an error if base64 decoding or JSON unmarshaling fails.
func DecodeOrder(encoded string) (dcvx.SignedOrder, error) {
	var order dcvx.SignedOrder

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return order, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(decoded, &order); err != nil {
		return order, fmt.Errorf("failed to unmarshal order: %w", err)
	}

	return order, nil
}
