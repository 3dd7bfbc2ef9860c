package bdd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chirino/askbox/internal/testutil/cucumber"
	"github.com/cucumber/godog"
)

func init() {
	cucumber.StepModules = append(cucumber.StepModules, func(sc *godog.ScenarioContext, s *cucumber.TestScenario) {
		q := &sqlQuery{scenario: s}
		sc.Step(`^I execute SQL query:$`, q.run)
		sc.Step(`^the SQL result should have (\d+) rows?$`, q.rowCountIs)
		sc.Step(`^the SQL result should match:$`, q.rowsMatch)
	})
}

// sqlQuery holds the rows of the last query a scenario ran. Stores without
// SQL leave rows nil and the assertions pass vacuously.
type sqlQuery struct {
	scenario *cucumber.TestScenario
	rows     []map[string]interface{}
}

func (q *sqlQuery) run(doc *godog.DocString) error {
	db := q.scenario.Suite.DB
	if db == nil {
		return fmt.Errorf("scenario has no database handle")
	}
	query, err := q.scenario.Expand(doc.Content)
	if err != nil {
		return err
	}
	if q.rows, err = db.ExecSQL(context.Background(), query); err != nil || q.rows == nil {
		return err
	}

	// The rows double as the response so JSON assertions apply to them.
	body, err := json.Marshal(q.rows)
	if err != nil {
		return err
	}
	q.scenario.Session().SetRespBytes(body)
	return nil
}

func (q *sqlQuery) rowCountIs(want int) error {
	if q.rows != nil && len(q.rows) != want {
		return fmt.Errorf("SQL result has %d row(s), want %d", len(q.rows), want)
	}
	return nil
}

// rowsMatch compares the header-named columns of each table row with the
// row at the same position. Extra result columns are ignored.
func (q *sqlQuery) rowsMatch(table *godog.Table) error {
	if q.rows == nil {
		return nil
	}
	if len(table.Rows) < 2 {
		return fmt.Errorf("table needs a header and at least one row")
	}
	header := table.Rows[0].Cells
	for i, expected := range table.Rows[1:] {
		if i >= len(q.rows) {
			return fmt.Errorf("SQL result has %d row(s), table expects %d", len(q.rows), len(table.Rows)-1)
		}
		for c, cell := range expected.Cells {
			want, err := q.scenario.Expand(cell.Value)
			if err != nil {
				return err
			}
			column := header[c].Value
			if got := fmt.Sprint(q.rows[i][column]); got != want {
				return fmt.Errorf("row %d column %q: got %q, want %q", i, column, got, want)
			}
		}
	}
	return nil
}
