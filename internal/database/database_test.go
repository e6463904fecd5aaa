package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/kec-cse/sap-points/internal/models"
)

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect("mysql", "root@/sap")
	require.Error(t, err)

	_, err = ConnectSQLite("")
	require.Error(t, err)

	_, err = ConnectRedis(context.Background(), "")
	require.Error(t, err)

	_, err = ConnectNATS("", "sap")
	require.Error(t, err)
}

func TestMigrateSQLite(t *testing.T) {
	db, err := Connect("sqlite", "file:migrate_test?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.True(t, db.Migrator().HasTable(&models.EventSubmission{}))
	require.True(t, db.Migrator().HasTable(&models.ReviewLog{}))
}

func TestConnectRedisPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Set(context.Background(), "marks:ping", "1", 0).Err())

	addr := mr.Addr()
	mr.Close()
	_, err = ConnectRedis(context.Background(), "redis://"+addr)
	require.Error(t, err)
}
