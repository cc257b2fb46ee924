package types

import (
	"database/sql/driver"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Date stores a calendar day without a time or zone. It round-trips through
// SQL DATE columns and JSON as "YYYY-MM-DD".
type Date struct {
	civil.Date
}

// NewDate wraps a civil.Date.
func NewDate(d civil.Date) Date {
	return Date{Date: d}
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src any) error {
	switch value := src.(type) {
	case nil:
		d.Date = civil.Date{}
		return nil
	case time.Time:
		d.Date = civil.DateOf(value)
		return nil
	case string:
		return d.parse(value)
	case []byte:
		return d.parse(string(value))
	default:
		return fmt.Errorf("types.Date: cannot scan %T", src)
	}
}

func (d *Date) parse(raw string) error {
	if len(raw) > len("2006-01-02") {
		raw = raw[:len("2006-01-02")]
	}
	parsed, err := civil.ParseDate(raw)
	if err != nil {
		return fmt.Errorf("types.Date: %w", err)
	}
	d.Date = parsed
	return nil
}
