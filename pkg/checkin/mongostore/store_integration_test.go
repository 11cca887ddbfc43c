//go:build integration

package mongostore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
	"github.com/dmitrymomot/kiosk/pkg/checkin/mongostore"
	"github.com/dmitrymomot/kiosk/pkg/checkin/storetest"
	"github.com/dmitrymomot/kiosk/pkg/mongo"
)

func TestStore_Conformance(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	cfg := mongo.Config{
		ConnectionURL:  "mongodb://" + endpoint,
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    50,
		RetryAttempts:  5,
		RetryInterval:  500 * time.Millisecond,
	}
	client, err := mongo.New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	require.NoError(t, mongo.Healthcheck(client)(ctx))

	storetest.Run(t, func(t *testing.T) storetest.Harness {
		db := client.Database("kiosk_" + uuid.NewString()[:8])
		t.Cleanup(func() { _ = db.Drop(context.Background()) })

		store := mongostore.New(db)
		require.NoError(t, store.Migrate(ctx))
		require.NoError(t, store.Migrate(ctx))

		return storetest.Harness{
			Store: store,
			Records: func(t *testing.T, code string) []checkin.SessionRecord {
				records, err := store.Records(ctx, code)
				require.NoError(t, err)
				return records
			},
		}
	})
}
