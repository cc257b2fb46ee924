package validators

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
)

const maxPathParamLen = 128

// PathParam returns a trimmed, non-empty chi URL parameter.
func PathParam(r *http.Request, key string) (string, error) {
	value := SanitizeString(chi.URLParam(r, key), maxPathParamLen)
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "path parameter is required").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}

// SanitizeString trims input and caps it at maxLen bytes without splitting a
// multi-byte character.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 || len(trimmed) <= maxLen {
		return trimmed
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return trimmed[:cut]
}

// ParseDay parses a YYYY-MM-DD calendar day.
func ParseDay(field, raw string) (civil.Date, error) {
	day, err := civil.ParseDate(strings.TrimSpace(raw))
	if err != nil || !day.IsValid() {
		return civil.Date{}, pkgerrors.New(pkgerrors.CodeValidation, "date must be formatted YYYY-MM-DD").WithDetails(map[string]any{"field": field})
	}
	return day, nil
}

// ParseDirection parses an increase/decrease quantity direction.
func ParseDirection(field, raw string) (enums.QuantityDirection, error) {
	direction, err := enums.ParseQuantityDirection(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "direction must be increase or decrease").WithDetails(map[string]any{"field": field})
	}
	return direction, nil
}
