package bdd

import (
	"path/filepath"
	"testing"

	"github.com/chirino/askbox/internal/config"
	"github.com/chirino/askbox/internal/plugin/store/sqlite"
)

func TestFeatures(t *testing.T) {
	_ = sqlite.ForceImport

	cfg := config.DefaultConfig()
	cfg.DatastoreType = "sqlite"
	cfg.DBURL = filepath.Join(t.TempDir(), "askbox.db")

	runFeatures(t, &cfg, &SQLiteTestDB{DBURL: cfg.DBURL})
}
