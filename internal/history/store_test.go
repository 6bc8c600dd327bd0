package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsIdentityAndTimestamp(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	mock.ExpectExec("INSERT INTO history").
		WithArgs(pgxmock.AnyArg(), KindScheduleSync, "up-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	e := &Entry{
		Kind:     KindScheduleSync,
		UploadID: "up-1",
		Counts:   map[string]int{"upserted": 4},
	}
	require.NoError(t, store.Append(context.Background(), e))

	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.False(t, e.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListFiltersByKind(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "kind", "upload_id", "counts", "detail", "created_at"}).
		AddRow(id, KindDispatchRun, "", []byte(`{"sent":7}`), []byte(`{"strategy":"bulk"}`), time.Now().UTC())

	mock.ExpectQuery("SELECT (.+) FROM history WHERE kind").
		WithArgs(KindDispatchRun, 50).
		WillReturnRows(rows)

	got, err := store.List(context.Background(), KindDispatchRun, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, 7, got[0].Counts["sent"])
	assert.Equal(t, "bulk", got[0].Detail["strategy"])
}

func TestListClampsLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	mock.ExpectQuery("SELECT (.+) FROM history").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "kind", "upload_id", "counts", "detail", "created_at"}))

	_, err = store.List(context.Background(), "", 9999)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
