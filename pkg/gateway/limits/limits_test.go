package limits

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/anay-go/anay/pkg/core"
)

func TestText(t *testing.T) {
	got, err := Text("text", "  open notepad \n", 64)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got != "open notepad" {
		t.Fatalf("got=%q, want %q", got, "open notepad")
	}

	_, err = Text("text", "   ", 64)
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		t.Fatalf("expected core.Error, got %T (%v)", err, err)
	}
	if coreErr.Param != "text" || coreErr.Message != "text is required" {
		t.Fatalf("param=%q message=%q", coreErr.Param, coreErr.Message)
	}

	_, err = Text("text", strings.Repeat("a", 65), 64)
	if !errors.As(err, &coreErr) {
		t.Fatalf("expected core.Error, got %T (%v)", err, err)
	}
	if coreErr.Type != core.ErrInvalidRequest {
		t.Fatalf("type=%q", coreErr.Type)
	}

	if _, err := Text("text", strings.Repeat("a", 1000), 0); err != nil {
		t.Fatalf("unlimited err=%v", err)
	}
}

func TestBase64(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(make([]byte, 100))
	if err := Base64("data_b64", payload, 100); err != nil {
		t.Fatalf("at limit err=%v", err)
	}
	err := Base64("data_b64", payload, 99)
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		t.Fatalf("expected core.Error, got %T (%v)", err, err)
	}
	if coreErr.Param != "data_b64" {
		t.Fatalf("param=%q", coreErr.Param)
	}
	if err := Base64("data_b64", payload, 0); err != nil {
		t.Fatalf("disabled err=%v", err)
	}
}

func TestEstimateDecodedBytes(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 4, 5, 31, 32, 33} {
		b64 := base64.StdEncoding.EncodeToString(make([]byte, n))
		if got := EstimateDecodedBytes(b64); got != int64(n) {
			t.Fatalf("n=%d got=%d", n, got)
		}
	}
}
