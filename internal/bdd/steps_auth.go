package bdd

import (
	"fmt"
	"time"

	"github.com/chirino/askbox/internal/security"
	"github.com/chirino/askbox/internal/testutil/cucumber"
	"github.com/cucumber/godog"
)

// testJWTSecret signs the HS256 tokens minted by "I am signed in as".
const testJWTSecret = "bdd-shared-secret"

func init() {
	cucumber.StepModules = append(cucumber.StepModules, func(ctx *godog.ScenarioContext, s *cucumber.TestScenario) {
		a := &authSteps{s: s}
		ctx.Step(`^I am signed in as "([^"]*)"$`, a.iAmSignedInAs)
		ctx.Step(`^I am authenticated as user "([^"]*)"$`, a.iAmAuthenticatedAsUser)
		ctx.Step(`^I am anonymous$`, a.iAmAnonymous)
	})
}

type authSteps struct {
	s *cucumber.TestScenario
}

func (a *authSteps) setUser(name, subject string) {
	a.s.Suite.Mu.Lock()
	defer a.s.Suite.Mu.Unlock()
	a.s.Users[name] = &cucumber.TestUser{Name: name, Subject: subject}
	a.s.CurrentUser = name
}

// iAmSignedInAs presents a signed HS256 token carrying uid.
func (a *authSteps) iAmSignedInAs(uid string) error {
	token, err := security.SignToken(uid, []byte(testJWTSecret), time.Hour)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	a.setUser(uid, token)
	return nil
}

// iAmAuthenticatedAsUser presents the raw uid, which testing mode accepts.
func (a *authSteps) iAmAuthenticatedAsUser(uid string) error {
	a.setUser(uid, uid)
	return nil
}

func (a *authSteps) iAmAnonymous() error {
	a.setUser("", "")
	return nil
}
