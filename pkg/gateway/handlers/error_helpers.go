package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/anay-go/anay/pkg/core"
	"github.com/anay-go/anay/pkg/gateway/apierror"
	"github.com/anay-go/anay/pkg/gateway/metrics"
	"github.com/anay-go/anay/pkg/gateway/mw"
)

func coreErrorFrom(err error, reqID string) (*core.Error, int) {
	return apierror.FromError(err, reqID)
}

func writeCoreErrorJSON(w http.ResponseWriter, reqID string, coreErr *core.Error, status int) {
	if coreErr != nil && coreErr.RequestID == "" {
		coreErr.RequestID = reqID
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apierror.Envelope{Error: coreErr})
}

// writeErr maps err onto the canonical error envelope and counts upstream
// failures against their provider.
func writeErr(w http.ResponseWriter, reqID string, err error, m *metrics.Metrics) {
	coreErr, status := coreErrorFrom(err, reqID)
	if coreErr.Provider != "" {
		m.RecordProviderError(coreErr.Provider, string(coreErr.Type))
	}
	writeCoreErrorJSON(w, reqID, coreErr, status)
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	reqID := requestIDFromContext(r.Context())
	w.Header().Set("Allow", allowed)
	writeCoreErrorJSON(w, reqID, &core.Error{
		Type:    core.ErrInvalidRequest,
		Message: "method not allowed",
		Code:    "method_not_allowed",
	}, http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestIDFromContext(ctx context.Context) string {
	if id, ok := mw.RequestIDFrom(ctx); ok {
		return id
	}
	return ""
}

func itoa(v int) string { return strconv.Itoa(v) }
