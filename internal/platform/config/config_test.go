package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := FromEnv()
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, "sqlite", cfg.Storage.Driver)
		assert.Equal(t, time.Hour, cfg.Tracking.VPNSuspectThreshold)
		assert.Equal(t, "once", cfg.Tracking.TaxResidentNotify)
		assert.False(t, cfg.Kafka.Enabled())
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("NOMAD_STORAGE_DRIVER", "memory")
		t.Setenv("NOMAD_TRACKING_VPN_SUSPECT_THRESHOLD", "30m")
		t.Setenv("NOMAD_TRACKING_TAX_RESIDENT_NOTIFY", "recurring")
		t.Setenv("NOMAD_TRACKING_TIME_ZONE", "Asia/Bangkok")
		t.Setenv("NOMAD_KAFKA_BROKERS", "localhost:9092, ,broker-2:9092")

		cfg, err := FromEnv()
		require.NoError(t, err)

		assert.Equal(t, 30*time.Minute, cfg.Tracking.VPNSuspectThreshold)
		assert.Equal(t, "recurring", cfg.Tracking.TaxResidentNotify)
		assert.Equal(t, []string{"localhost:9092", "broker-2:9092"}, cfg.Kafka.Brokers)

		loc, err := cfg.Tracking.Location()
		require.NoError(t, err)
		assert.Equal(t, "Asia/Bangkok", loc.String())
	})
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Storage:  Storage{Driver: "memory"},
			Tracking: Tracking{TimeZone: "UTC", TaxResidentNotify: "once", QueueSize: 8},
		}
	}

	t.Run("rejects unknown driver", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Driver = "mongo"
		assert.ErrorContains(t, cfg.Validate(), "unsupported NOMAD_STORAGE_DRIVER")
	})

	t.Run("redis driver requires url", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Driver = "redis"
		assert.ErrorContains(t, cfg.Validate(), "REDIS_URL")
	})

	t.Run("rejects unknown tax resident policy", func(t *testing.T) {
		cfg := base()
		cfg.Tracking.TaxResidentNotify = "daily"
		assert.ErrorContains(t, cfg.Validate(), "once or recurring")
	})

	t.Run("rejects unknown time zone", func(t *testing.T) {
		cfg := base()
		cfg.Tracking.TimeZone = "Mars/Olympus"
		assert.ErrorContains(t, cfg.Validate(), "load time zone")
	})
}
