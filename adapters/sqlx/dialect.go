package sqlx

import (
	"fmt"

	"highscore/core"
)

// Driver names a database/sql driver supported by the Store.
type Driver string

const (
	DriverSQLite   Driver = "sqlite3"
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// dialect holds the statements that differ between engines. Placeholders are
// written as '?' and rebound per driver.
type dialect struct {
	tableExists string
	createTable string
	upsert      string
	// submit must affect zero rows when the stored score is >= the new one.
	submit string
}

const selectColumns = "SELECT name, difficulty, score FROM " + core.TableName

var (
	queryAll               = selectColumns + " ORDER BY difficulty ASC, score DESC, name ASC"
	queryByName            = selectColumns + " WHERE name = ? ORDER BY difficulty ASC, score DESC"
	queryByDifficulty      = selectColumns + " WHERE difficulty = ? ORDER BY score DESC, name ASC"
	queryByNameDifficulty  = selectColumns + " WHERE name = ? AND difficulty = ?"
	queryScoreForKey       = "SELECT score FROM " + core.TableName + " WHERE name = ? AND difficulty = ?"
	insertColumns          = "INSERT INTO " + core.TableName + " (name, difficulty, score) VALUES (?, ?, ?)"
	onConflictReplace      = " ON CONFLICT (name, difficulty) DO UPDATE SET score = excluded.score"
	onConflictReplaceIfGT  = onConflictReplace + " WHERE " + core.TableName + ".score < excluded.score"
	onDuplicateReplace     = " ON DUPLICATE KEY UPDATE score = VALUES(score)"
	onDuplicateReplaceIfGT = " ON DUPLICATE KEY UPDATE score = GREATEST(score, VALUES(score))"
)

var dialects = map[Driver]dialect{
	DriverSQLite: {
		tableExists: "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		createTable: `CREATE TABLE IF NOT EXISTS ` + core.TableName + ` (
			name VARCHAR NOT NULL,
			difficulty INTEGER NOT NULL,
			score INTEGER NOT NULL,
			PRIMARY KEY (name, difficulty))`,
		upsert: insertColumns + onConflictReplace,
		submit: insertColumns + onConflictReplaceIfGT,
	},
	DriverPostgres: {
		tableExists: "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?",
		createTable: `CREATE TABLE IF NOT EXISTS ` + core.TableName + ` (
			name TEXT NOT NULL,
			difficulty INTEGER NOT NULL,
			score BIGINT NOT NULL,
			PRIMARY KEY (name, difficulty))`,
		upsert: insertColumns + onConflictReplace,
		submit: insertColumns + onConflictReplaceIfGT,
	},
	// utf8mb4_bin keeps names case-sensitive. GREATEST leaves the row untouched
	// on a non-improving score, which MySQL reports as zero affected rows.
	DriverMySQL: {
		tableExists: "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
		createTable: `CREATE TABLE IF NOT EXISTS ` + core.TableName + ` (
			name VARCHAR(255) NOT NULL,
			difficulty INT NOT NULL,
			score BIGINT NOT NULL,
			PRIMARY KEY (name, difficulty)) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin`,
		upsert: insertColumns + onDuplicateReplace,
		submit: insertColumns + onDuplicateReplaceIfGT,
	},
}

func dialectFor(d Driver) (dialect, error) {
	dl, ok := dialects[d]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported sql driver %q", d)
	}
	return dl, nil
}
