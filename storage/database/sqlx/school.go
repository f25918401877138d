package sqlxrepos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/school"
)

const schoolColumns = "id, name, type, language, plan, address, phone, region, created_at, updated_at"

var schoolOrderings = map[string]string{
	"name":       "name",
	"region":     "region",
	"plan":       "plan",
	"created_at": "created_at",
}

type schoolRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Type      string `db:"type"`
	Language  string `db:"language"`
	Plan      string `db:"plan"`
	Address   string `db:"address"`
	Phone     string `db:"phone"`
	Region    string `db:"region"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r schoolRow) school() school.School {
	return school.School{
		ID:        r.ID,
		Name:      r.Name,
		Type:      r.Type,
		Language:  r.Language,
		Plan:      r.Plan,
		Address:   r.Address,
		Phone:     r.Phone,
		Region:    r.Region,
		CreatedAt: core.FromMillis(r.CreatedAt),
		UpdatedAt: core.FromMillis(r.UpdatedAt),
	}
}

type schoolRepository struct {
	repository
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{repository{exec: exec}}
}

func (repo schoolRepository) CreateSchool(ctx context.Context, sch school.School, exec ...core.DBExecutor) (school.School, error) {
	sch.ID = uuid.New().String()
	_, err := execCount(ctx, repo.getExec(exec),
		"INSERT INTO schools ("+schoolColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		sch.ID, sch.Name, sch.Type, sch.Language, sch.Plan, sch.Address, sch.Phone, sch.Region,
		core.Millis(sch.CreatedAt), core.Millis(sch.UpdatedAt))
	if err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return sch, nil
}

func (repo schoolRepository) QuerySchools(ctx context.Context, search string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]school.School, error) {
	var w where
	if search != "" {
		val := "%" + strings.ToLower(search) + "%"
		w.add("(LOWER(name) LIKE ? OR LOWER(region) LIKE ?)", val, val)
	}

	var rows []schoolRow
	q := "SELECT " + schoolColumns + " FROM schools" + w.String() + core.OrderByClause(ordering, schoolOrderings, "name ASC")
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, r := range rows {
		schools = append(schools, r.school())
	}
	return schools, nil
}

func (repo schoolRepository) GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (school.School, error) {
	var row schoolRow
	if err := get(ctx, repo.getExec(exec), &row, "SELECT "+schoolColumns+" FROM schools WHERE id = ?", id); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "finding school")
	}
	return row.school(), nil
}

func (repo schoolRepository) UpdateSchool(ctx context.Context, sch school.School, exec ...core.DBExecutor) (school.School, error) {
	cnt, err := execCount(ctx, repo.getExec(exec),
		"UPDATE schools SET name = ?, type = ?, language = ?, plan = ?, address = ?, phone = ?, region = ?, updated_at = ? WHERE id = ?",
		sch.Name, sch.Type, sch.Language, sch.Plan, sch.Address, sch.Phone, sch.Region, core.Millis(sch.UpdatedAt), sch.ID)
	if err != nil {
		return school.School{}, errors.Wrap(err, "updating school")
	}
	if cnt == 0 {
		return school.School{}, school.ErrNotFound
	}
	return sch, nil
}
