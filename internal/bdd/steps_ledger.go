package bdd

import (
	"context"
	"fmt"
	"sync"

	"github.com/chirino/askbox/internal/model"
	registrystore "github.com/chirino/askbox/internal/registry/store"
	"github.com/chirino/askbox/internal/security"
	"github.com/chirino/askbox/internal/testutil/cucumber"
	"github.com/cucumber/godog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func init() {
	cucumber.StepModules = append(cucumber.StepModules, func(ctx *godog.ScenarioContext, s *cucumber.TestScenario) {
		l := &ledgerSteps{s: s}
		ctx.Step(`^the messageCount of user "([^"]*)" should be (\d+)$`, l.theMessageCountShouldBe)
		ctx.Step(`^user "([^"]*)" should have no messageCount$`, l.userShouldHaveNoMessageCount)
		ctx.Step(`^(\d+) messages are posted concurrently to user "([^"]*)"$`, l.messagesArePostedConcurrently)
		ctx.Step(`^I record the posted message count$`, l.iRecordThePostedMessageCount)
		ctx.Step(`^the posted message count should have increased by (\d+)$`, l.thePostedMessageCountShouldHaveIncreasedBy)
	})
}

type ledgerSteps struct {
	s           *cucumber.TestScenario
	postedCount float64
}

func (l *ledgerSteps) user(uid string) (*model.User, error) {
	if l.s.Suite.Store == nil {
		return nil, fmt.Errorf("no store configured")
	}
	var user *model.User
	err := l.s.Suite.Store.RunTransaction(context.Background(), func(ctx context.Context, tx registrystore.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, uid)
		return err
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %q does not exist", uid)
	}
	return user, nil
}

func (l *ledgerSteps) theMessageCountShouldBe(uid string, expected int64) error {
	user, err := l.user(uid)
	if err != nil {
		return err
	}
	if user.MessageCount == nil {
		return fmt.Errorf("user %q has no messageCount, expected %d", uid, expected)
	}
	if *user.MessageCount != expected {
		return fmt.Errorf("user %q messageCount: expected %d, got %d", uid, expected, *user.MessageCount)
	}
	return nil
}

func (l *ledgerSteps) userShouldHaveNoMessageCount(uid string) error {
	user, err := l.user(uid)
	if err != nil {
		return err
	}
	if user.MessageCount != nil {
		return fmt.Errorf("user %q messageCount: expected unset, got %d", uid, *user.MessageCount)
	}
	return nil
}

// messagesArePostedConcurrently fires n messages.add requests in parallel,
// each on its own session.
func (l *ledgerSteps) messagesArePostedConcurrently(n int, uid string) error {
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = postMessage(l.s.Suite.APIURL, uid, fmt.Sprintf("concurrent %d", i))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *ledgerSteps) iRecordThePostedMessageCount() error {
	l.postedCount = testutil.ToFloat64(security.MessagesPostedTotal)
	return nil
}

func (l *ledgerSteps) thePostedMessageCountShouldHaveIncreasedBy(expected int) error {
	delta := testutil.ToFloat64(security.MessagesPostedTotal) - l.postedCount
	if int(delta) != expected {
		return fmt.Errorf("posted message counter increased by %v, expected %d", delta, expected)
	}
	return nil
}
