package poselog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	// registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

const sqliteDriver = "sqlite"

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkTableName(table string) error {
	if !tableNameRegex.MatchString(table) {
		return errors.Errorf("invalid table name %q", table)
	}
	return nil
}

// ReadSQLite reads a position log from table in the SQLite database at path. The table needs the
// columns time, roll, pitch, yaw, x, y, z, sv1 and sv2; values of any storage class that convert to
// numbers are accepted and NULL reads as zero.
func ReadSQLite(ctx context.Context, path, table string) (*PositionLog, error) {
	if err := checkTableName(table); err != nil {
		return nil, err
	}
	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(db.Close)

	//nolint:gosec
	query := fmt.Sprintf("SELECT time, roll, pitch, yaw, x, y, z, sv1, sv2 FROM %s ORDER BY time", table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s", table)
	}
	defer goutils.UncheckedErrorFunc(rows.Close)

	var records []PoseRecord
	for rows.Next() {
		var cols [9]interface{}
		ptrs := make([]interface{}, len(cols))
		for i := range cols {
			ptrs[i] = &cols[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec, err := recordFromColumns(cols)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", len(records)+1)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewPositionLog(records), nil
}

func recordFromColumns(cols [9]interface{}) (PoseRecord, error) {
	var rec PoseRecord
	var errs error
	var err error

	rec.Time, err = cast.ToInt64E(cols[0])
	errs = multierr.Append(errs, errors.Wrap(err, "time"))
	floats := []*float64{&rec.Roll, &rec.Pitch, &rec.Yaw, &rec.X, &rec.Y, &rec.Z}
	for i, dst := range floats {
		*dst, err = cast.ToFloat64E(cols[i+1])
		errs = multierr.Append(errs, errors.Wrap(err, textColumns[i+1]))
	}
	for i := 0; i < 2; i++ {
		rec.Satellites[i], err = cast.ToIntE(cols[7+i])
		errs = multierr.Append(errs, errors.Wrap(err, textColumns[7+i]))
	}
	return rec, errs
}

// WriteSQLite creates table in the SQLite database at path if needed and inserts records into it
// in one transaction.
func WriteSQLite(ctx context.Context, path, table string, records []PoseRecord) (err error) {
	if err := checkTableName(table); err != nil {
		return err
	}
	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, db.Close())
	}()

	//nolint:gosec
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		time INTEGER NOT NULL,
		roll REAL, pitch REAL, yaw REAL,
		x REAL, y REAL, z REAL,
		sv1 INTEGER, sv2 INTEGER
	)`, table)); err != nil {
		return errors.Wrapf(err, "creating %s", table)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	//nolint:gosec
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (time, roll, pitch, yaw, x, y, z, sv1, sv2) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", table))
	if err != nil {
		return multierr.Combine(err, tx.Rollback())
	}
	defer goutils.UncheckedErrorFunc(stmt.Close)
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Time, r.Roll, r.Pitch, r.Yaw, r.X, r.Y, r.Z,
			r.Satellites[0], r.Satellites[1]); err != nil {
			return multierr.Combine(errors.Wrapf(err, "inserting record at time %d", r.Time), tx.Rollback())
		}
	}
	return tx.Commit()
}
