package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
)

const maxCursorLen = 256

// ParseQueryInt reads an optional integer query parameter bounded by [min, max].
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// QueryCursor returns the opaque pagination cursor, rejecting oversized values
// before they reach the decoder.
func QueryCursor(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("cursor"))
	if len(raw) > maxCursorLen {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid pagination cursor").WithDetails(map[string]any{"field": "cursor"})
	}
	return raw, nil
}
