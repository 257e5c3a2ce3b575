// Package sqlsink implements projector.Sink against a relational database
// via database/sql and the lib/pq driver, grounded on SPEC_FULL.md's
// relational-sink wiring of the teacher's indirect lib/pq dependency (§4.4
// "Relational sink uses six tables"). Every row is keyed by
// (repoId, projectionType, recordId) and upserts are idempotent, so
// re-projecting the same record set never produces duplicate rows.
package sqlsink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/gitgov-dev/gitgov-core/projector"
	"github.com/gitgov-dev/gitgov-core/record"
)

// SQLSink persists IndexData snapshots scoped to a single repoID, so one
// database can back multiple repositories without cross-talk.
type SQLSink struct {
	db     *sql.DB
	repoID string
}

// Open connects to dataSourceName (a postgres "DATABASE_URL", §6
// "Environment") and returns a ready SQLSink scoped to repoID.
func Open(dataSourceName, repoID string) (*SQLSink, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database connection")
	}
	return New(db, repoID), nil
}

// New wraps an already-open *sql.DB, scoped to repoID. Useful for tests
// against an injected connection.
func New(db *sql.DB, repoID string) *SQLSink {
	return &SQLSink{db: db, repoID: repoID}
}

var tableNames = []string{"task", "cycle", "actor", "feedback", "activity", "meta"}

func tableName(kind string) string {
	return "gitgov_" + kind
}

// EnsureSchema creates the six backing tables if they do not already exist.
// Callers that manage migrations externally may skip calling this.
func (s *SQLSink) EnsureSchema(ctx context.Context) error {
	for _, kind := range tableNames {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			repo_id         TEXT NOT NULL,
			projection_type TEXT NOT NULL,
			record_id       TEXT NOT NULL,
			payload         JSONB NOT NULL,
			PRIMARY KEY (repo_id, projection_type, record_id)
		)`, tableName(kind))
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return errors.Wrapf(err, "failed to ensure schema for %s", kind)
		}
	}
	return nil
}

func upsert(ctx context.Context, tx *sql.Tx, table, repoID, projectionType, recordID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal payload")
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (repo_id, projection_type, record_id, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (repo_id, projection_type, record_id)
		DO UPDATE SET payload = EXCLUDED.payload
	`, table)
	_, err = tx.ExecContext(ctx, query, repoID, projectionType, recordID, raw)
	return err
}

func deleteProjectionType(ctx context.Context, tx *sql.Tx, table, repoID, projectionType string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE repo_id = $1 AND projection_type = $2`, table)
	_, err := tx.ExecContext(ctx, query, repoID, projectionType)
	return err
}

// Persist upserts every entity in data within a single transaction.
// Stale rows for a projection type (e.g. a task deleted since the last
// projection) are cleared first within the same transaction so a
// re-projection reflects the current record set exactly, not its union
// with history.
func (s *SQLSink) Persist(ctx context.Context, data *projector.IndexData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteProjectionType(ctx, tx, tableName("task"), s.repoID, "task"); err != nil {
		return errors.Wrap(err, "failed to clear stale task rows")
	}
	for _, tk := range data.Tasks {
		if err := upsert(ctx, tx, tableName("task"), s.repoID, "task", tk.ID, tk); err != nil {
			return errors.Wrapf(err, "failed to upsert task %q", tk.ID)
		}
	}

	if err := deleteProjectionType(ctx, tx, tableName("cycle"), s.repoID, "cycle"); err != nil {
		return errors.Wrap(err, "failed to clear stale cycle rows")
	}
	for _, c := range data.Cycles {
		if err := upsert(ctx, tx, tableName("cycle"), s.repoID, "cycle", c.ID, c); err != nil {
			return errors.Wrapf(err, "failed to upsert cycle %q", c.ID)
		}
	}

	if err := deleteProjectionType(ctx, tx, tableName("actor"), s.repoID, "actor"); err != nil {
		return errors.Wrap(err, "failed to clear stale actor rows")
	}
	for _, a := range data.Actors {
		if err := upsert(ctx, tx, tableName("actor"), s.repoID, "actor", a.ID, a); err != nil {
			return errors.Wrapf(err, "failed to upsert actor %q", a.ID)
		}
	}

	if err := deleteProjectionType(ctx, tx, tableName("feedback"), s.repoID, "feedback"); err != nil {
		return errors.Wrap(err, "failed to clear stale feedback rows")
	}
	for _, fb := range data.Feedback {
		if err := upsert(ctx, tx, tableName("feedback"), s.repoID, "feedback", fb.ID, fb); err != nil {
			return errors.Wrapf(err, "failed to upsert feedback %q", fb.ID)
		}
	}

	if err := deleteProjectionType(ctx, tx, tableName("activity"), s.repoID, "activity"); err != nil {
		return errors.Wrap(err, "failed to clear stale activity rows")
	}
	for i, evt := range data.ActivityHistory {
		recordID := fmt.Sprintf("%d-%s-%d", evt.Timestamp, evt.EntityID, i)
		if err := upsert(ctx, tx, tableName("activity"), s.repoID, "activity", recordID, evt); err != nil {
			return errors.Wrap(err, "failed to upsert activity event")
		}
	}

	// Entity types without a dedicated table (agent, execution, changelog)
	// and the metadata/derivedStates envelopes overflow into Meta, keyed by
	// their own projectionType so Read can reconstruct them distinctly.
	for _, kv := range []struct {
		projectionType string
		clear          bool
	}{
		{"agent", true}, {"execution", true}, {"changelog", true},
	} {
		if kv.clear {
			if err := deleteProjectionType(ctx, tx, tableName("meta"), s.repoID, kv.projectionType); err != nil {
				return errors.Wrapf(err, "failed to clear stale %s rows", kv.projectionType)
			}
		}
	}
	for _, a := range data.Agents {
		if err := upsert(ctx, tx, tableName("meta"), s.repoID, "agent", a.ID, a); err != nil {
			return errors.Wrapf(err, "failed to upsert agent %q", a.ID)
		}
	}
	for _, ex := range data.Executions {
		if err := upsert(ctx, tx, tableName("meta"), s.repoID, "execution", ex.ID, ex); err != nil {
			return errors.Wrapf(err, "failed to upsert execution %q", ex.ID)
		}
	}
	for _, cl := range data.Changelogs {
		if err := upsert(ctx, tx, tableName("meta"), s.repoID, "changelog", cl.ID, cl); err != nil {
			return errors.Wrapf(err, "failed to upsert changelog %q", cl.ID)
		}
	}
	if err := upsert(ctx, tx, tableName("meta"), s.repoID, "metadata", "singleton", data.Metadata); err != nil {
		return errors.Wrap(err, "failed to upsert metadata")
	}
	if err := upsert(ctx, tx, tableName("meta"), s.repoID, "derivedStates", "singleton", data.DerivedStates); err != nil {
		return errors.Wrap(err, "failed to upsert derived states")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func selectPayloads(ctx context.Context, db *sql.DB, table, repoID, projectionType string) ([][]byte, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE repo_id = $1 AND projection_type = $2 ORDER BY record_id`, table)
	rows, err := db.QueryContext(ctx, query, repoID, projectionType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, rows.Err()
}

// Read reconstructs an IndexData snapshot equivalent to the one last
// persisted (§4.4 "read(sink)").
func (s *SQLSink) Read(ctx context.Context) (*projector.IndexData, error) {
	data := &projector.IndexData{
		DerivedStates: map[string][]string{},
	}

	taskRows, err := selectPayloads(ctx, s.db, tableName("task"), s.repoID, "task")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read task rows")
	}
	for _, raw := range taskRows {
		var tk projector.EnrichedTask
		if err := json.Unmarshal(raw, &tk); err != nil {
			return nil, errors.Wrap(err, "failed to decode task row")
		}
		data.Tasks = append(data.Tasks, tk)
	}

	if err := readInto(ctx, s, "cycle", &data.Cycles); err != nil {
		return nil, err
	}
	if err := readInto(ctx, s, "actor", &data.Actors); err != nil {
		return nil, err
	}
	if err := readInto(ctx, s, "feedback", &data.Feedback); err != nil {
		return nil, err
	}

	activityRows, err := selectPayloads(ctx, s.db, tableName("activity"), s.repoID, "activity")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read activity rows")
	}
	for _, raw := range activityRows {
		var evt projector.ActivityEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, errors.Wrap(err, "failed to decode activity row")
		}
		data.ActivityHistory = append(data.ActivityHistory, evt)
	}

	agentRows, err := selectPayloads(ctx, s.db, tableName("meta"), s.repoID, "agent")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read agent rows")
	}
	for _, raw := range agentRows {
		var a record.AgentRecord
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, errors.Wrap(err, "failed to decode agent row")
		}
		data.Agents = append(data.Agents, a)
	}

	execRows, err := selectPayloads(ctx, s.db, tableName("meta"), s.repoID, "execution")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read execution rows")
	}
	for _, raw := range execRows {
		var ex record.ExecutionRecord
		if err := json.Unmarshal(raw, &ex); err != nil {
			return nil, errors.Wrap(err, "failed to decode execution row")
		}
		data.Executions = append(data.Executions, ex)
	}

	changelogRows, err := selectPayloads(ctx, s.db, tableName("meta"), s.repoID, "changelog")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read changelog rows")
	}
	for _, raw := range changelogRows {
		var cl record.ChangelogRecord
		if err := json.Unmarshal(raw, &cl); err != nil {
			return nil, errors.Wrap(err, "failed to decode changelog row")
		}
		data.Changelogs = append(data.Changelogs, cl)
	}

	metaRows, err := selectPayloads(ctx, s.db, tableName("meta"), s.repoID, "metadata")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read metadata row")
	}
	if len(metaRows) > 0 {
		if err := json.Unmarshal(metaRows[0], &data.Metadata); err != nil {
			return nil, errors.Wrap(err, "failed to decode metadata row")
		}
	}

	derivedRows, err := selectPayloads(ctx, s.db, tableName("meta"), s.repoID, "derivedStates")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read derived states row")
	}
	if len(derivedRows) > 0 {
		if err := json.Unmarshal(derivedRows[0], &data.DerivedStates); err != nil {
			return nil, errors.Wrap(err, "failed to decode derived states row")
		}
	}

	sort.Slice(data.ActivityHistory, func(i, j int) bool {
		return data.ActivityHistory[i].Timestamp < data.ActivityHistory[j].Timestamp
	})

	return data, nil
}

func readInto[T any](ctx context.Context, s *SQLSink, projectionType string, out *[]T) error {
	rows, err := selectPayloads(ctx, s.db, tableName(projectionType), s.repoID, projectionType)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s rows", projectionType)
	}
	for _, raw := range rows {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return errors.Wrapf(err, "failed to decode %s row", projectionType)
		}
		*out = append(*out, v)
	}
	return nil
}

var _ projector.Sink = (*SQLSink)(nil)
