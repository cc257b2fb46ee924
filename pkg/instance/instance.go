package instance

import "os"

const envInstanceID = "TOURBOOK_INSTANCE_ID"

// GetID returns the process instance identifier, falling back to the host
// name and then to a fixed default.
func GetID() string {
	if id := os.Getenv(envInstanceID); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "api-0"
}
