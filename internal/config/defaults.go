package config

import "time"

const defaultPort = 8080

// Tripay endpoints.
const (
	tripaySandboxURL    = "https://tripay.co.id/api-sandbox"
	tripayProductionURL = "https://tripay.co.id/api"
)

var defaultDB = DB{
	Host:        "127.0.0.1",
	Port:        "5432",
	User:        "myuser",
	Pass:        "mypassword",
	Name:        "test_db",
	AutoMigrate: true,
}

var defaultKafka = Kafka{
	NotificationsTopic: "palmshell.notifications",
	GroupID:            "palmshell-worker",
}

var defaultRetry = Retry{
	MaxAttempts: 3,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    2 * time.Second,
}

// Warehouse in Pekanbaru, used as the origin of distance estimates.
var defaultMaps = Maps{
	WarehouseLat: 0.5071,
	WarehouseLng: 101.4478,
}

var defaultGeofence = Geofence{RadiusKm: 0.5}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       10,
	Burst:      20,
	TTL:        5 * time.Minute,
	MaxBuckets: 10000,
}

var defaultService = Service{OperationTimeout: 5 * time.Second}

// DefaultPort returns the default port.
func DefaultPort() int {
	return defaultPort
}

// DefaultDB returns the default database settings.
func DefaultDB() DB {
	return defaultDB
}

// DefaultKafka returns the default kafka settings.
func DefaultKafka() Kafka {
	return defaultKafka
}

// DefaultRetry returns the default gateway retry settings.
func DefaultRetry() Retry {
	return defaultRetry
}

// DefaultTripayURL returns the gateway base url for the mode.
func DefaultTripayURL(sandbox bool) string {
	if sandbox {
		return tripaySandboxURL
	}
	return tripayProductionURL
}

// DefaultMaps returns the default warehouse origin.
func DefaultMaps() Maps {
	return defaultMaps
}

// DefaultGeofence returns the default completion radius.
func DefaultGeofence() Geofence {
	return defaultGeofence
}

// DefaultRateLimit returns the default rate limit settings.
func DefaultRateLimit() RateLimit {
	return defaultRateLimit
}

// DefaultService returns the default operation settings.
func DefaultService() Service {
	return defaultService
}
