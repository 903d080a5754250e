package db

import (
	"testing"

	"linkdrop-controlplane/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestDialect(t *testing.T) {
	cfg := &config.Config{}

	for _, typ := range []string{"postgres", "mysql", "sqlite"} {
		cfg.Database.Type = typ
		cfg.Database.DBNAME = "linkdrop"
		d, err := Dialect(cfg)
		require.NoError(t, err)
		require.Equal(t, typ, d.Name())
	}

	cfg.Database.Type = "oracle"
	_, err := Dialect(cfg)
	require.Error(t, err)
}

func TestExtractDBNameFromDSN(t *testing.T) {
	require.Equal(t, "linkdrop", extractDBNameFromDSN("host=db user=u dbname=linkdrop port=5432"))
	require.Equal(t, "linkdrop", extractDBNameFromDSN("u:p@tcp(db:3306)/linkdrop?parseTime=True"))
	require.Equal(t, "unknown", extractDBNameFromDSN("host=db"))
}

func TestNewTest(t *testing.T) {
	db, err := NewTest()
	require.NoError(t, err)
	require.NoError(t, Otel(db))
}
