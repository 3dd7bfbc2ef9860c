// Package cucumber runs godog feature files against a live askbox server.
//
// Each scenario tracks the users it acts as. Every user gets a session that
// remembers its last response, so switching users switches the response that
// later steps inspect. Variables belong to the scenario and are expanded with
// ${...} in step arguments (see Expand).
package cucumber

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	registrystore "github.com/chirino/askbox/internal/registry/store"
	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
	"github.com/itchyny/gojq"
)

// TestDB gives steps direct access to the backend under test.
type TestDB interface {
	// ClearAll wipes members, handles and messages. Runs before each scenario.
	ClearAll(ctx context.Context) error
	// ExecSQL returns the rows of query as maps. Backends without SQL return
	// nil, nil and the SQL steps skip their assertions.
	ExecSQL(ctx context.Context, query string) ([]map[string]interface{}, error)
}

// TestSuite is shared by every scenario of a run.
type TestSuite struct {
	APIURL   string
	Mu       sync.Mutex
	TestingT *testing.T
	DB       TestDB
	// Store is the running server's store, for assertions on persisted state.
	Store registrystore.Store
}

func NewTestSuite() *TestSuite {
	return &TestSuite{APIURL: "http://localhost:8080"}
}

// StepModules register step definitions for each new scenario.
var StepModules []func(ctx *godog.ScenarioContext, s *TestScenario)

func (suite *TestSuite) InitializeScenario(ctx *godog.ScenarioContext) {
	s := &TestScenario{
		Suite:     suite,
		Users:     map[string]*TestUser{},
		sessions:  map[string]*TestSession{},
		Variables: map[string]interface{}{},
	}
	for _, module := range StepModules {
		module(ctx, s)
	}
}

func DefaultOptions() godog.Options {
	return godog.Options{
		Output:      colors.Colored(os.Stdout),
		Format:      "progress",
		Paths:       []string{"features"},
		Randomize:   time.Now().UTC().UnixNano(),
		Concurrency: 1,
	}
}

// ApplyReportOptions writes junit XML to $GODOG_REPORT_DIR/<testName>.xml
// when the variable is set. The returned func closes the report file.
func ApplyReportOptions(opts *godog.Options, testName string) func() {
	reportDir := os.Getenv("GODOG_REPORT_DIR")
	if reportDir == "" {
		return func() {}
	}
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return func() {}
	}
	f, err := os.Create(filepath.Join(reportDir, strings.ReplaceAll(testName, "/", "-")+".xml"))
	if err != nil {
		return func() {}
	}
	opts.Output = f
	opts.Format = "junit"
	return func() { _ = f.Close() }
}

// TestUser is a caller identity. Subject is sent as the bearer token.
type TestUser struct {
	Name    string
	Subject string
}

// TestScenario is the state of one scenario. Steps of a scenario run
// sequentially.
type TestScenario struct {
	Suite       *TestSuite
	CurrentUser string
	Variables   map[string]interface{}
	Users       map[string]*TestUser
	sessions    map[string]*TestSession
}

func (s *TestScenario) User() *TestUser {
	s.Suite.Mu.Lock()
	defer s.Suite.Mu.Unlock()
	return s.Users[s.CurrentUser]
}

// Session returns the current user's session, creating it on first use.
func (s *TestScenario) Session() *TestSession {
	result := s.sessions[s.CurrentUser]
	if result == nil {
		result = &TestSession{
			TestUser: s.User(),
			Client:   &http.Client{Timeout: 30 * time.Second},
			Header:   http.Header{},
		}
		s.sessions[s.CurrentUser] = result
	}
	return result
}

// TestSession is the HTTP state of one user.
type TestSession struct {
	TestUser  *TestUser
	Client    *http.Client
	Resp      *http.Response
	RespBytes []byte
	respJSON  interface{}
	// Header is sent with the next request only.
	Header http.Header
}

// RespJSON returns the last response body parsed as JSON.
func (s *TestSession) RespJSON() (interface{}, error) {
	if s.respJSON == nil {
		if s.RespBytes == nil {
			return nil, fmt.Errorf("no response body")
		}
		if err := json.Unmarshal(s.RespBytes, &s.respJSON); err != nil {
			return nil, fmt.Errorf("error parsing response json: %w\njson was:\n%s", err, s.RespBytes)
		}
	}
	return s.respJSON, nil
}

func (s *TestSession) SetRespBytes(bytes []byte) {
	s.RespBytes = bytes
	s.respJSON = nil
}

// selectFromResponse returns the first value selector yields on the current
// response body.
func (s *TestScenario) selectFromResponse(selector string) (interface{}, error) {
	doc, err := s.Session().RespJSON()
	if err != nil {
		return nil, err
	}
	query, err := gojq.Parse(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	value, found := query.Run(doc).Next()
	if !found {
		return nil, fmt.Errorf("response has no node matching selector: %s\n%s", selector, s.Session().RespBytes)
	}
	if err, ok := value.(error); ok {
		return nil, fmt.Errorf("selector %s: %w", selector, err)
	}
	return value, nil
}
