package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/fawad-mazhar/taskflow/internal/config"
	"github.com/fawad-mazhar/taskflow/internal/storage"
	"github.com/fawad-mazhar/taskflow/internal/storage/storagetest"
	"github.com/stretchr/testify/require"
)

// Runs against a real database when TASKFLOW_TEST_POSTGRES_URL is set.
func TestClientIntegration(t *testing.T) {
	url := os.Getenv("TASKFLOW_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("TASKFLOW_TEST_POSTGRES_URL not set")
	}

	client, err := NewClient(config.PostgresConfig{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Migrate(context.Background()))

	storagetest.TaskStoreSuite(t, func(t *testing.T) storage.TaskStore {
		_, err := client.db.ExecContext(context.Background(), `TRUNCATE tasks, task_results`)
		require.NoError(t, err)
		return client
	})
}
