package subscriber

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

// Settings carry the broker session configuration. They are resolved once at
// construction and never change for the lifetime of the subscriber.
type Settings struct {
	Hostname  string
	TCPPort   int
	ClientID  string
	Username  string
	Password  []byte
	KeepAlive time.Duration

	UseTLS          bool
	CertFile        string
	KeyFile         string
	KeyFilePassword string
	CAFile          string
}

// Deployed defaults, matching the bedside sensor firmware.
const (
	defaultHostname  = "test.mosquitto.org"
	defaultTCPPort   = 1883
	defaultClientID  = "bedwatch-monitor"
	defaultKeepAlive = 60 * time.Second
)

// SettingsFromEnv builds Settings from MQTT_* environment variables, e.g.
//
//	MQTT_HOST_NAME=localhost
//	MQTT_TCP_PORT=1883
//	MQTT_CLIENT_ID=bedwatch
//	MQTT_KEEP_ALIVE=PT30S
//
// Unset variables fall back to the deployed defaults.
func SettingsFromEnv() (Settings, error) {
	return settingsFromMap(parseToSettingsMap(os.Environ()))
}

// Environment variables become map keys by stripping the MQTT_ prefix and
// all underscores and lowercasing, so MQTT_HOST_NAME keys as "hostname".
func parseToSettingsMap(envVars []string) map[string]string {
	settingsMap := make(map[string]string)
	for _, envVar := range envVars {
		kv := strings.SplitN(envVar, "=", 2)
		if len(kv) == 2 && strings.HasPrefix(kv[0], "MQTT_") {
			k := strings.ToLower(
				strings.ReplaceAll(strings.TrimPrefix(kv[0], "MQTT_"), "_", ""),
			)
			settingsMap[k] = strings.TrimSpace(kv[1])
		}
	}
	return settingsMap
}

func settingsFromMap(settingsMap map[string]string) (Settings, error) {
	s := Settings{
		Hostname:  defaultHostname,
		TCPPort:   defaultTCPPort,
		ClientID:  defaultClientID,
		KeepAlive: defaultKeepAlive,
	}

	assignIfExists(settingsMap, "hostname", &s.Hostname)
	assignIfExists(settingsMap, "clientid", &s.ClientID)
	assignIfExists(settingsMap, "username", &s.Username)
	assignIfExists(settingsMap, "certfile", &s.CertFile)
	assignIfExists(settingsMap, "keyfile", &s.KeyFile)
	assignIfExists(settingsMap, "keyfilepassword", &s.KeyFilePassword)
	assignIfExists(settingsMap, "cafile", &s.CAFile)

	if password, exists := settingsMap["password"]; exists {
		s.Password = []byte(password)
	}

	s.UseTLS = settingsMap["usetls"] == "true"

	if value, exists := settingsMap["tcpport"]; exists {
		port, err := strconv.Atoi(value)
		if err != nil || port < 1 || port > 65535 {
			return Settings{}, &SettingsError{
				Property: "TcpPort",
				Message:  "must be a valid port number",
			}
		}
		s.TCPPort = port
	}

	if value, exists := settingsMap["keepalive"]; exists {
		keepAlive, err := duration.Parse(value)
		if err != nil {
			return Settings{}, &SettingsError{
				Property: "KeepAlive",
				Message:  "must be an ISO 8601 duration",
			}
		}
		s.KeepAlive = keepAlive.ToTimeDuration()
	}

	if s.ClientID == "" {
		return Settings{}, &SettingsError{
			Property: "ClientID",
			Message:  "must not be empty",
		}
	}

	return s, nil
}

func assignIfExists(settingsMap map[string]string, key string, dst *string) {
	if value, exists := settingsMap[key]; exists {
		*dst = value
	}
}
