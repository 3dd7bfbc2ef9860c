package bdd

import (
	"context"
	"fmt"

	"github.com/chirino/askbox/internal/plugin/store/sqlite"
	"github.com/chirino/askbox/internal/testutil/cucumber"
	"gorm.io/gorm"
)

// SQLiteTestDB implements cucumber.TestDB for the embedded SQLite store.
type SQLiteTestDB struct {
	DBURL string
}

var _ cucumber.TestDB = (*SQLiteTestDB)(nil)

func (d *SQLiteTestDB) withDB(fn func(db *gorm.DB) error) error {
	db, err := sqlite.Open(d.DBURL)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return fn(db)
}

func (d *SQLiteTestDB) ClearAll(ctx context.Context) error {
	return d.withDB(func(db *gorm.DB) error {
		for _, table := range clearOrder {
			if err := db.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("cleanup: failed to delete from %s: %w", table, err)
			}
		}
		return nil
	})
}

func (d *SQLiteTestDB) ExecSQL(ctx context.Context, query string) ([]map[string]interface{}, error) {
	result := []map[string]interface{}{}
	err := d.withDB(func(db *gorm.DB) error {
		var rows []map[string]interface{}
		if err := db.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
			return fmt.Errorf("SQL query failed: %w", err)
		}
		for _, row := range rows {
			for k, v := range row {
				row[k] = normalizeSQLValue(v)
			}
			result = append(result, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
