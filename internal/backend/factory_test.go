package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastos/internal/config"
	"gastos/internal/core"
	"gastos/internal/services"
	"gastos/internal/storage"
	"gastos/internal/store/memory"
	"gastos/internal/store/remote"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "postgres"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:   "remote",
		RemoteBaseURL: "http://localhost:9000",
		AMQPURL:       "amqp://localhost",
		AMQPExchange:  "gastos",
		AMQPQueue:     "q",
	})
	require.NoError(t, err)
	assert.Equal(t, RemoteBackend, cfg.Type)
	assert.Equal(t, "http://localhost:9000", cfg.RemoteBaseURL)
	assert.Equal(t, "q", cfg.AMQPQueue)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"unknown", Config{Type: "postgres"}, true},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"remote without url", Config{Type: RemoteBackend}, true},
		{"sheets without id", Config{Type: SheetsBackend}, true},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://x", AMQPExchange: "e"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.csv")
	require.NoError(t, os.WriteFile(seed, []byte("date,amount,category\n2024-01-10,300,Food\n"), 0o644))

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, SeedFile: seed})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.IsType(t, &services.ExpenseService{}, res.Store)
	assert.IsType(t, &memory.Store{}, res.Raw)

	records, err := res.Store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Food", records[0].Category)
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gastos.db")

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	assert.IsType(t, &storage.SQLiteRepository{}, res.Raw)

	created, err := res.Store.Create(ctx, core.Expense{Amount: decimal.NewFromInt(5), Category: "Fun", Date: "2024-05-01"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	require.NoError(t, res.Cleanup())
}

func TestCreateRemoteBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: RemoteBackend, RemoteBaseURL: "http://localhost:9000"})
	require.NoError(t, err)
	assert.IsType(t, &remote.Client{}, res.Raw)

	_, err = NewFactory(nil).CreateBackend(context.Background(), Config{Type: RemoteBackend, RemoteBaseURL: "ftp://nope"})
	assert.Error(t, err)
}
