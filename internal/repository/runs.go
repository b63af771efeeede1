package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/company-extractor/constants"
	"github.com/joseph-ayodele/company-extractor/internal/common"
	"github.com/joseph-ayodele/company-extractor/internal/entity"
)

// Completion carries what a run produced. It is written on success and,
// partially, when a run fails after records were collected.
type Completion struct {
	Chunks       int
	FailedChunks int
	Records      []entity.Company
	Warnings     []string
	Stats        *entity.RunStats
	Artifact     []byte
	Filename     string
}

// Artifact is a stored export ready to be served.
type Artifact struct {
	Filename string
	Data     []byte
}

type RunRepository interface {
	Create(ctx context.Context, run *entity.Run) error
	MarkRunning(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, c Completion) error
	Fail(ctx context.Context, id uuid.UUID, message string, partial *Completion) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Run, error)
	GetArtifact(ctx context.Context, id uuid.UUID) (*Artifact, error)
	List(ctx context.Context, limit int) ([]*entity.Run, error)
	Count(ctx context.Context) (int, error)
}

type runRepo struct {
	store *Store
	log   *slog.Logger
}

func NewRunRepository(store *Store, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{store: store, log: log}
}

var runColumns = []string{
	"id", "source_name", "status", "chunk_size", "dedup", "chunks", "failed_chunks", "record_count",
	"records", "warnings", "stats", "export_filename", "error_message", "created_at", "started_at", "finished_at",
}

const runsTable = "runs"

func (r *runRepo) Create(ctx context.Context, run *entity.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = string(constants.RunStatusQueued)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	q, args := r.store.builder().Insert(runsTable).
		Columns("id", "source_name", "status", "chunk_size", "dedup", "created_at").
		Values(run.ID.String(), run.SourceName, run.Status, run.ChunkSize, run.Dedup, toMillis(run.CreatedAt)).
		Query()
	if _, err := r.store.DB.ExecContext(ctx, q, args...); err != nil {
		r.log.Error("runs.create.error", "run_id", run.ID, "err", err)
		return common.NewAppError("DB_ERROR", "create run", errors.Join(common.ErrDatabase, err))
	}
	r.log.Info("runs.created", "run_id", run.ID, "source", run.SourceName)
	return nil
}

func (r *runRepo) MarkRunning(ctx context.Context, id uuid.UUID) error {
	u := r.store.builder().Update(runsTable).
		Set("status", string(constants.RunStatusRunning)).
		Set("started_at", toMillis(time.Now()))
	return r.update(ctx, id, "running", u)
}

func (r *runRepo) Complete(ctx context.Context, id uuid.UUID, c Completion) error {
	u, err := r.finish(constants.RunStatusCompleted, c)
	if err != nil {
		return err
	}
	u.Set("artifact", c.Artifact).Set("export_filename", nullString(c.Filename))
	if err := r.update(ctx, id, "complete", u); err != nil {
		return err
	}
	r.log.Info("runs.completed", "run_id", id, "records", len(c.Records))
	return nil
}

func (r *runRepo) Fail(ctx context.Context, id uuid.UUID, message string, partial *Completion) error {
	var c Completion
	if partial != nil {
		c = *partial
	}
	u, err := r.finish(constants.RunStatusFailed, c)
	if err != nil {
		return err
	}
	u.Set("error_message", message)
	if err := r.update(ctx, id, "fail", u); err != nil {
		return err
	}
	r.log.Warn("runs.failed", "run_id", id, "error", message)
	return nil
}

// finish sets the columns shared by both terminal states.
func (r *runRepo) finish(status constants.RunStatus, c Completion) (*entsql.UpdateBuilder, error) {
	records, warnings, stats, err := encodeCompletion(c)
	if err != nil {
		return nil, err
	}
	return r.store.builder().Update(runsTable).
		Set("status", string(status)).
		Set("chunks", c.Chunks).
		Set("failed_chunks", c.FailedChunks).
		Set("record_count", len(c.Records)).
		Set("records", records).
		Set("warnings", warnings).
		Set("stats", stats).
		Set("finished_at", toMillis(time.Now())), nil
}

func (r *runRepo) update(ctx context.Context, id uuid.UUID, op string, u *entsql.UpdateBuilder) error {
	q, args := u.Where(entsql.EQ("id", id.String())).Query()
	res, err := r.store.DB.ExecContext(ctx, q, args...)
	if err != nil {
		r.log.Error("runs.update.error", "op", op, "run_id", id, "err", err)
		return common.NewAppError("DB_ERROR", "update run", errors.Join(common.ErrDatabase, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewAppError("NOT_FOUND", fmt.Sprintf("run %s not found", id), common.ErrNotFound)
	}
	return nil
}

func (r *runRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Run, error) {
	b := r.store.builder()
	q, args := b.Select(runColumns...).From(b.Table(runsTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	run, err := scanRun(r.store.DB.QueryRowContext(ctx, q, args...), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("run %s not found", id), common.ErrNotFound)
	}
	if err != nil {
		r.log.Error("runs.get.error", "run_id", id, "err", err)
		return nil, common.NewAppError("DB_ERROR", "get run", errors.Join(common.ErrDatabase, err))
	}
	return run, nil
}

func (r *runRepo) GetArtifact(ctx context.Context, id uuid.UUID) (*Artifact, error) {
	b := r.store.builder()
	q, args := b.Select("status", "artifact", "export_filename").From(b.Table(runsTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	var (
		status   string
		data     []byte
		filename sql.NullString
	)
	err := r.store.DB.QueryRowContext(ctx, q, args...).Scan(&status, &data, &filename)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("run %s not found", id), common.ErrNotFound)
	}
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "get artifact", errors.Join(common.ErrDatabase, err))
	}
	if status != string(constants.RunStatusCompleted) || len(data) == 0 {
		return nil, common.NewAppError("CONFLICT", fmt.Sprintf("run %s is %s", id, status), common.ErrConflict)
	}
	return &Artifact{Filename: filename.String, Data: data}, nil
}

// List returns the most recent runs without their records.
func (r *runRepo) List(ctx context.Context, limit int) ([]*entity.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	b := r.store.builder()
	q, args := b.Select(runColumns...).From(b.Table(runsTable)).
		OrderBy(entsql.Desc("created_at")).
		Limit(limit).
		Query()
	rows, err := r.store.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "list runs", errors.Join(common.ErrDatabase, err))
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.Run
	for rows.Next() {
		run, err := scanRun(rows, false)
		if err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan run", errors.Join(common.ErrDatabase, err))
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "list runs", errors.Join(common.ErrDatabase, err))
	}
	return out, nil
}

func (r *runRepo) Count(ctx context.Context) (int, error) {
	b := r.store.builder()
	q, args := b.Select(entsql.Count("*")).From(b.Table(runsTable)).Query()
	var n int
	if err := r.store.DB.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, common.NewAppError("DB_ERROR", "count runs", errors.Join(common.ErrDatabase, err))
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner, withRecords bool) (*entity.Run, error) {
	var (
		run                      entity.Run
		id                       string
		records, warnings, stats sql.NullString
		filename, errMsg         sql.NullString
		created                  int64
		started, finished        sql.NullInt64
	)
	err := sc.Scan(&id, &run.SourceName, &run.Status, &run.ChunkSize, &run.Dedup,
		&run.Chunks, &run.FailedChunks, &run.RecordCount,
		&records, &warnings, &stats, &filename, &errMsg,
		&created, &started, &finished)
	if err != nil {
		return nil, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	run.CreatedAt = fromMillis(created)
	run.StartedAt = fromNullMillis(started)
	run.FinishedAt = fromNullMillis(finished)
	if filename.Valid {
		run.ExportFilename = &filename.String
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	if stats.Valid && stats.String != "" {
		var st entity.RunStats
		if err := json.Unmarshal([]byte(stats.String), &st); err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
		run.Stats = &st
	}
	if warnings.Valid && warnings.String != "" {
		if err := json.Unmarshal([]byte(warnings.String), &run.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
	}
	if withRecords && records.Valid && records.String != "" {
		if err := json.Unmarshal([]byte(records.String), &run.Records); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
	}
	return &run, nil
}

func encodeCompletion(c Completion) (records, warnings, stats sql.NullString, err error) {
	if records, err = jsonColumn(c.Records); err != nil {
		return
	}
	if warnings, err = jsonColumn(c.Warnings); err != nil {
		return
	}
	if c.Stats != nil {
		stats, err = jsonColumn(c.Stats)
	}
	return
}

func jsonColumn(v any) (sql.NullString, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, common.NewAppError("DB_ERROR", "encode column", errors.Join(common.ErrInternal, err))
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
