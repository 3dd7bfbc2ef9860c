package bdd

import (
	"context"

	"github.com/chirino/askbox/internal/testutil/cucumber"
	"github.com/cucumber/godog"
)

func init() {
	cucumber.StepModules = append(cucumber.StepModules, resetBeforeScenario)
}

// resetBeforeScenario empties the backend so every scenario starts with no
// members, handles or messages.
func resetBeforeScenario(sc *godog.ScenarioContext, s *cucumber.TestScenario) {
	db := s.Suite.DB
	if db == nil {
		return
	}
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return ctx, db.ClearAll(ctx)
	})
}
