package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "sdd-service", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "sdd", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, "memory", cfg.Storage.Type)
		assert.Equal(t, 15*time.Minute, cfg.Storage.PresignExpiry)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, 2, cfg.Scheduler.Workers)
	})

	t.Run("direct debit defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		dd := cfg.DirectDebit
		assert.Equal(t, "pain.008.001.02", dd.DefaultFlavor)
		assert.Equal(t, "SLEV", dd.ChargeBearer)
		assert.True(t, dd.BatchBooking)
		assert.True(t, dd.ConvertToASCII)
		assert.Equal(t, 3000, dd.SplitCount)
		assert.Equal(t, 5, dd.MarkBlockSize)
		assert.Equal(t, 10*time.Minute, dd.LockTTL)
		assert.False(t, dd.ExpirySweepEnabled)
		assert.Equal(t, 36, dd.UnusedMonthsBeforeExpiry)
	})

	t.Run("loads values from environment variables with SDD prefix", func(t *testing.T) {
		t.Setenv("SDD_APP_PORT", "9000")
		t.Setenv("SDD_DATABASE_DRIVER", "sqlite")
		t.Setenv("SDD_DATABASE_PATH", ":memory:")
		t.Setenv("SDD_DIRECT_DEBIT_DEFAULT_FLAVOR", "pain.008.001.03")
		t.Setenv("SDD_DIRECT_DEBIT_BATCH_BOOKING", "false")
		t.Setenv("SDD_DIRECT_DEBIT_EXPIRY_SWEEP_ENABLED", "true")
		t.Setenv("SDD_DIRECT_DEBIT_UNUSED_MONTHS_BEFORE_EXPIRY", "24")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, ":memory:", cfg.Database.DSN())
		assert.Equal(t, "pain.008.001.03", cfg.DirectDebit.DefaultFlavor)
		assert.False(t, cfg.DirectDebit.BatchBooking)
		assert.True(t, cfg.DirectDebit.ExpirySweepEnabled)
		assert.Equal(t, 24, cfg.DirectDebit.UnusedMonthsBeforeExpiry)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("SDD_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("SDD_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown driver",
			env:     map[string]string{"SDD_DATABASE_DRIVER": "mysql"},
			wantErr: "database.driver",
		},
		{
			name:    "unsupported flavor",
			env:     map[string]string{"SDD_DIRECT_DEBIT_DEFAULT_FLAVOR": "pain.008.001.08"},
			wantErr: "default_flavor",
		},
		{
			name:    "unknown charge bearer",
			env:     map[string]string{"SDD_DIRECT_DEBIT_CHARGE_BEARER": "XXXX"},
			wantErr: "charge_bearer",
		},
		{
			name:    "s3 without bucket",
			env:     map[string]string{"SDD_STORAGE_TYPE": "s3"},
			wantErr: "storage.bucket",
		},
		{
			name: "production with memory storage",
			env: map[string]string{
				"SDD_APP_ENV":           "production",
				"SDD_DATABASE_PASSWORD": "secret",
				"SDD_DATABASE_SSLMODE":  "require",
			},
			wantErr: "storage.type",
		},
		{
			name: "production without ssl",
			env: map[string]string{
				"SDD_APP_ENV":           "production",
				"SDD_DATABASE_PASSWORD": "secret",
			},
			wantErr: "sslmode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sdd.toml")
	content := `
[database]
driver = "sqlite"
path = "/tmp/sdd.db"

[storage]
type = "s3"
bucket = "sdd-archive"
presign_expiry = "5m"

[direct_debit]
charge_bearer = "SHAR"
split_count = 500
lock_ttl = "2m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/sdd.db", cfg.Database.DSN())
	assert.Equal(t, "sdd-archive", cfg.Storage.Bucket)
	assert.Equal(t, 5*time.Minute, cfg.Storage.PresignExpiry)
	assert.Equal(t, "SHAR", cfg.DirectDebit.ChargeBearer)
	assert.Equal(t, 500, cfg.DirectDebit.SplitCount)
	assert.Equal(t, 2*time.Minute, cfg.DirectDebit.LockTTL)
	assert.True(t, cfg.DirectDebit.ConvertToASCII)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Driver:   "postgres",
		Host:     "db",
		Port:     5432,
		User:     "sdd",
		Password: "p@ss/word",
		DBName:   "sdd",
		SSLMode:  "require",
	}

	assert.Equal(t, "postgres://sdd:p%40ss%2Fword@db:5432/sdd?sslmode=require", d.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", r.Addr())
}
