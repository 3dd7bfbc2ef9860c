package bdd

import (
	"testing"

	"github.com/chirino/askbox/internal/config"
	mongoplugin "github.com/chirino/askbox/internal/plugin/store/mongo"
	"github.com/chirino/askbox/internal/testutil/containers"
)

func TestFeaturesMongo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed features in short mode")
	}
	_ = mongoplugin.ForceImport

	mongoURL := containers.Mongo(t)
	redisURL := containers.Redis(t)

	cfg := config.DefaultConfig()
	cfg.DatastoreType = "mongo"
	cfg.DBURL = mongoURL
	cfg.DBName = "askbox_bdd"
	cfg.CacheType = "redis"
	cfg.RedisURL = redisURL

	runFeatures(t, &cfg, &MongoTestDB{DBURL: mongoURL, DBName: cfg.DBName, RedisURL: redisURL})
}
