package cucumber

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

func init() {
	StepModules = append(StepModules, func(sc *godog.ScenarioContext, s *TestScenario) {
		sc.Step(`^I (GET|POST|PUT|DELETE|PATCH|OPTIONS) path "([^"]*)"$`, func(method, path string) error {
			return s.SendRequest(method, path, "")
		})
		sc.Step(`^I (GET|POST|PUT|DELETE|PATCH|OPTIONS) path "([^"]*)" with json body:$`, func(method, path string, body *godog.DocString) error {
			return s.SendRequest(method, path, body.Content)
		})
		sc.Step(`^I set the "([^"]*)" header to "([^"]*)"$`, s.setHeader)
	})
}

// SendRequest calls the API as the current user and records the response
// in the session. ${...} references in path and body are expanded first. A
// path with a scheme is used as is; anything else is relative to the API.
func (s *TestScenario) SendRequest(method, path, body string) error {
	target, err := s.Expand(path)
	if err != nil {
		return err
	}
	if !strings.Contains(target, "://") {
		target = s.Suite.APIURL + target
	}

	var reader io.Reader
	if body != "" {
		expanded, err := s.Expand(body)
		if err != nil {
			return err
		}
		reader = strings.NewReader(expanded)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, target, reader)
	if err != nil {
		return err
	}

	session := s.Session()
	session.Resp = nil
	session.SetRespBytes(nil)

	// Queued headers apply to this request only, except Authorization which
	// sticks for the rest of the session.
	req.Header, session.Header = session.Header, http.Header{}
	switch auth := req.Header.Get("Authorization"); {
	case auth != "":
		session.Header.Set("Authorization", auth)
	case session.TestUser != nil && session.TestUser.Subject != "":
		req.Header.Set("Authorization", "Bearer "+session.TestUser.Subject)
	}
	if reader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := session.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	session.Resp = resp
	session.SetRespBytes(raw)
	return nil
}

func (s *TestScenario) setHeader(name, value string) error {
	expanded, err := s.Expand(value)
	if err != nil {
		return err
	}
	s.Session().Header.Set(name, expanded)
	return nil
}
