package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		return clientTemplate, nil
	case "sim":
		return simTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads path as kind and reports the first problem.
func Validate(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		_, err := LoadClientConfig(path)
		return err
	case "sim":
		_, err := LoadSimConfig(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

const clientTemplate = `addr = "127.0.0.1:7400"
connect_timeout = "5s"
read_timeout = "2s"
write_timeout = "2s"
security_mode = "development"
tls_enabled = false
log_level = "info"

max_idle_polls = 4096
idle_backoff = "50us"
idle_backoff_multiplier = 2.0
idle_backoff_max = "5ms"
max_message_size = 67108864

gateway_addr = ":8740"
cors_origins = ["http://localhost:3000"]
pop_token = ""
`

const simTemplate = `addr = ":7400"
security_mode = "development"
tls_enabled = false
log_level = "info"

streams = ["color", "detections", "sysinfo"]
chunk_size = 252
idle_packets = 0
frame_size = 4096
interval = "100ms"
`
