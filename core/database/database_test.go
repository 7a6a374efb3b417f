package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDriverName(t *testing.T) {
	for in, want := range map[string]string{
		"":           DriverPostgres,
		"PG":         DriverPostgres,
		"postgresql": DriverPostgres,
		"sqlite":     DriverSQLite,
		"sqlite3":    DriverSQLite,
		" memory ":   DriverMemory,
	} {
		require.Equal(t, want, Config{Driver: in}.DriverName(), "driver %q", in)
	}
}

func TestConnectDSN(t *testing.T) {
	dsn, err := connectDSN(Config{Driver: "postgres", User: "u", Password: "p", Host: "db", Port: "5432", Name: "news", SSLMode: "disable"})
	require.NoError(t, err)
	require.Equal(t, "user=u password=p host=db port=5432 dbname=news sslmode=disable", dsn)

	_, err = connectDSN(Config{Driver: "sqlite3"})
	require.Error(t, err)

	dsn, err = connectDSN(Config{Driver: "sqlite3", Path: ":memory:"})
	require.NoError(t, err)
	require.Contains(t, dsn, "memory")

	_, err = connectDSN(Config{Driver: "mysql"})
	require.Error(t, err)
}

func TestAppliedBetween(t *testing.T) {
	files := []string{"000001_init.up.sql", "000002_topics.up.sql", "000003_queries.up.sql", "junk.up.sql"}
	require.Equal(t, []string{"000002_topics.up.sql", "000003_queries.up.sql"}, appliedBetween(files, 1, 3))
	require.Empty(t, appliedBetween(files, 3, 3))
}

func TestListMigrationFilesForSQLite(t *testing.T) {
	dir, err := resolveMigrationsDir(Config{MigrationsDir: "../../migrations"}, DriverSQLite)
	require.NoError(t, err)
	require.Equal(t, []string{"000001_init.up.sql"}, listMigrationFiles(dir))
}
