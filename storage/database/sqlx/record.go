package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/academic"
)

const recordColumns = "id, school_id, module, data, client_temp_id, created_at, updated_at"

type recordRow struct {
	ID           string      `db:"id"`
	SchoolID     string      `db:"school_id"`
	Module       string      `db:"module"`
	Data         string      `db:"data"`
	ClientTempID null.String `db:"client_temp_id"`
	CreatedAt    int64       `db:"created_at"`
	UpdatedAt    int64       `db:"updated_at"`
}

func (r recordRow) record() (academic.Record, error) {
	rec := academic.Record{
		ID:           r.ID,
		SchoolID:     r.SchoolID,
		Module:       r.Module,
		ClientTempID: r.ClientTempID.String,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Data), &rec.Data); err != nil {
		return academic.Record{}, errors.Wrap(err, "decoding record data")
	}
	return rec, nil
}

func encodeData(data academic.Data) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", errors.Wrap(err, "encoding record data")
	}
	return string(b), nil
}

type recordRepository struct {
	repository
}

var _ academic.Repository = (*recordRepository)(nil)

func NewRecordRepository(exec core.DBExecutor) *recordRepository {
	return &recordRepository{repository{exec: exec}}
}

func (repo recordRepository) CreateRecord(ctx context.Context, rec academic.Record, exec ...core.DBExecutor) (academic.Record, error) {
	data, err := encodeData(rec.Data)
	if err != nil {
		return academic.Record{}, err
	}
	rec.ID = uuid.New().String()
	cnt, err := execCount(ctx, repo.getExec(exec),
		"INSERT INTO records ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING",
		rec.ID, rec.SchoolID, rec.Module, data, null.NewString(rec.ClientTempID, rec.ClientTempID != ""),
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return academic.Record{}, errors.Wrap(err, "inserting record")
	}
	if cnt == 0 {
		return academic.Record{}, academic.ErrDuplicate
	}
	return rec, nil
}

func (repo recordRepository) scanAll(rows []recordRow) ([]academic.Record, error) {
	recs := make([]academic.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (repo recordRepository) QueryRecords(ctx context.Context, filter academic.QueryFilter, exec ...core.DBExecutor) ([]academic.Record, error) {
	var w where
	w.add("school_id = ?", filter.SchoolID)
	w.add("module = ?", filter.Module)
	if filter.Since > 0 {
		w.add("updated_at > ?", filter.Since)
	}

	var rows []recordRow
	q := "SELECT " + recordColumns + " FROM records" + w.String() + " ORDER BY created_at ASC, id ASC"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	return repo.scanAll(rows)
}

func (repo recordRepository) CountRecords(ctx context.Context, schoolID, module string, exec ...core.DBExecutor) (int, error) {
	var cnt int
	if err := get(ctx, repo.getExec(exec), &cnt, "SELECT COUNT(*) FROM records WHERE school_id = ? AND module = ?", schoolID, module); err != nil {
		return 0, errors.Wrap(err, "counting records")
	}
	return cnt, nil
}

func (repo recordRepository) getOne(ctx context.Context, exe core.DBExecutor, cond string, args ...interface{}) (academic.Record, error) {
	var row recordRow
	if err := get(ctx, exe, &row, "SELECT "+recordColumns+" FROM records WHERE "+cond, args...); err != nil {
		return academic.Record{}, trapNoRowsErr(err, academic.ErrNotFound, "finding record")
	}
	return row.record()
}

func (repo recordRepository) GetRecord(ctx context.Context, schoolID, module, id string, exec ...core.DBExecutor) (academic.Record, error) {
	return repo.getOne(ctx, repo.getExec(exec), "school_id = ? AND module = ? AND id = ?", schoolID, module, id)
}

func (repo recordRepository) GetRecordByTempID(ctx context.Context, schoolID, module, tempID string, exec ...core.DBExecutor) (academic.Record, error) {
	return repo.getOne(ctx, repo.getExec(exec), "school_id = ? AND module = ? AND client_temp_id = ?", schoolID, module, tempID)
}

func (repo recordRepository) UpdateRecord(ctx context.Context, rec academic.Record, exec ...core.DBExecutor) (academic.Record, error) {
	data, err := encodeData(rec.Data)
	if err != nil {
		return academic.Record{}, err
	}
	cnt, err := execCount(ctx, repo.getExec(exec),
		"UPDATE records SET data = ?, updated_at = ? WHERE school_id = ? AND module = ? AND id = ?",
		data, rec.UpdatedAt, rec.SchoolID, rec.Module, rec.ID)
	if err != nil {
		return academic.Record{}, errors.Wrap(err, "updating record")
	}
	if cnt == 0 {
		return academic.Record{}, academic.ErrNotFound
	}
	return rec, nil
}

func (repo recordRepository) DeleteRecord(ctx context.Context, schoolID, module, id string, exec ...core.DBExecutor) (int, error) {
	cnt, err := execCount(ctx, repo.getExec(exec),
		"DELETE FROM records WHERE school_id = ? AND module = ? AND id = ?", schoolID, module, id)
	if err != nil {
		return 0, errors.Wrap(err, "deleting record")
	}
	return cnt, nil
}
