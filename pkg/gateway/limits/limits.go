// Package limits validates request payload sizes before any upstream work.
package limits

import (
	"fmt"
	"strings"

	"github.com/anay-go/anay/pkg/core"
)

// Text trims text and rejects it when blank or longer than maxBytes.
// A maxBytes of zero or less disables the size check.
func Text(param, text string, maxBytes int) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", core.NewInvalidRequestErrorWithParam(param+" is required", param)
	}
	if maxBytes > 0 && len(text) > maxBytes {
		return "", core.NewInvalidRequestErrorWithParam(
			fmt.Sprintf("%s is %d bytes, exceeds limit %d", param, len(text), maxBytes),
			param,
		)
	}
	return text, nil
}

// Base64 rejects an encoded payload whose decoded size would exceed
// maxBytes, without decoding it.
func Base64(param, b64 string, maxBytes int64) error {
	if maxBytes <= 0 {
		return nil
	}
	decoded := EstimateDecodedBytes(b64)
	if decoded > maxBytes {
		return core.NewInvalidRequestErrorWithParam(
			fmt.Sprintf("decoded %s payload %d exceeds limit %d", param, decoded, maxBytes),
			param,
		)
	}
	return nil
}

// EstimateDecodedBytes returns floor(len*3/4) minus padding.
func EstimateDecodedBytes(b64 string) int64 {
	n := int64(len(b64))
	if n <= 0 {
		return 0
	}
	pad := int64(0)
	if strings.HasSuffix(b64, "==") {
		pad = 2
	} else if strings.HasSuffix(b64, "=") {
		pad = 1
	}
	decoded := (n * 3 / 4) - pad
	if decoded < 0 {
		return 0
	}
	return decoded
}
