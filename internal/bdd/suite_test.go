package bdd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chirino/askbox/internal/cmd/serve"
	"github.com/chirino/askbox/internal/config"
	"github.com/chirino/askbox/internal/testutil/cucumber"
	"github.com/cucumber/godog"
	"github.com/stretchr/testify/require"
)

// runFeatures starts a server for cfg and runs every feature file against it.
func runFeatures(t *testing.T, cfg *config.Config, db cucumber.TestDB) {
	t.Helper()
	cfg.Mode = config.ModeTesting
	cfg.JWTSecret = testJWTSecret
	cfg.Listener.Port = 0
	cfg.Listener.EnableTLS = false
	ctx := config.WithContext(context.Background(), cfg)

	srv, err := serve.StartServer(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	apiURL := fmt.Sprintf("http://localhost:%d", srv.Running.Port)

	featureFiles, err := filepath.Glob(filepath.Join("testdata", "features", "*.feature"))
	require.NoError(t, err)
	require.NotEmpty(t, featureFiles, "no feature files found")

	opts := cucumber.DefaultOptions()
	// Scenarios share one database and clear it before each run.
	opts.Concurrency = 1
	if testing.Verbose() {
		opts.Format = "pretty"
	}

	for _, featurePath := range featureFiles {
		name := strings.TrimSuffix(filepath.Base(featurePath), ".feature")
		t.Run(name, func(t *testing.T) {
			o := opts
			o.TestingT = t
			o.Paths = []string{featurePath}
			defer cucumber.ApplyReportOptions(&o, t.Name())()

			suite := cucumber.NewTestSuite()
			suite.APIURL = apiURL
			suite.TestingT = t
			suite.DB = db
			suite.Store = srv.Store

			status := godog.TestSuite{
				Name:                name,
				Options:             &o,
				ScenarioInitializer: suite.InitializeScenario,
			}.Run()
			if status != 0 {
				t.Fail()
			}
		})
	}
}
