package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-eval-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var teacherColumnNames = []string{"id", "dni", "last_names", "first_names", "phone", "personal_email", "institutional_email", "course", "work_condition", "shift_hours", "total_hours", "created_at", "updated_at"}

func TestTeacherRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(teacherColumnNames).
		AddRow("t1", "12345678", "Alvarez", "Rosa", "987654321", "rosa@mail.com", "rosa@colegio.edu.pe", "FÍSICA", "tiempo completo", []byte(`{"turno 1":10,"turno 2":5}`), 15, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + teacherColumns + " FROM teachers ORDER BY last_names ASC")).
		WillReturnRows(rows)

	list, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.ShiftHours{"turno 1": 10, "turno 2": 5}, list[0].ShiftHours)
	assert.Equal(t, models.CourseFisica, list[0].Course)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryFindByIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	empty, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM teachers WHERE id = ANY($1)")).
		WithArgs(pq.Array([]string{"t1", "t2"})).
		WillReturnRows(sqlmock.NewRows(teacherColumnNames).
			AddRow("t1", "12345678", "Alvarez", "Rosa", "987654321", "a@b.co", "c@d.co", "FÍSICA", "tiempo parcial", []byte(`{}`), 0, now, now))

	list, err := repo.FindByIDs(context.Background(), []string{"t1", "t2"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryCreateUpdateDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	teacher := &models.Teacher{DNI: "12345678", LastNames: "Alvarez", FirstNames: "Rosa", ShiftHours: models.ShiftHours{"turno 1": 4}, TotalHours: 4}
	mock.ExpectExec("INSERT INTO teachers").
		WithArgs(sqlmock.AnyArg(), "12345678", "Alvarez", "Rosa", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), []byte(`{"turno 1":4}`), 4, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Create(context.Background(), teacher))
	assert.NotEmpty(t, teacher.ID)
	assert.False(t, teacher.CreatedAt.IsZero())

	mock.ExpectExec("UPDATE teachers SET").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Update(context.Background(), teacher), sql.ErrNoRows)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teachers WHERE id = $1")).
		WithArgs(teacher.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), teacher.ID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryExistsByDNI(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM teachers WHERE dni = $1 AND id <> $2 LIMIT 1")).
		WithArgs("12345678", "t1").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByDNI(context.Background(), "12345678", "t1")
	require.NoError(t, err)
	assert.False(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM teachers WHERE dni = $1 LIMIT 1")).
		WithArgs("12345678").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err = repo.ExistsByDNI(context.Background(), "12345678", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
