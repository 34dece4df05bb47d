package sink

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// anyArgs matches one tenders row per record.
func anyArgs(records int) []any {
	args := make([]any, records*len(tenderColumns))
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgres_Push(t *testing.T) {
	tests := []struct {
		name    string
		batch   Batch
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr string
	}{
		{
			name:  "tenders and sources in one transaction",
			batch: batch(record("a", "A"), record("b", "B")),
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO tenders .* ON CONFLICT \(ocid\) DO UPDATE`).
					WithArgs(anyArgs(2)...).
					WillReturnResult(pgxmock.NewResult("INSERT", 2))
				mock.ExpectExec(`INSERT INTO tender_sources`).
					WithArgs("find_a_tender", at, 2, "run-1").
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectCommit()
			},
		},
		{
			name:  "no records still records the sync",
			batch: batch(),
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO tender_sources`).
					WithArgs("find_a_tender", at, 0, "run-1").
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectCommit()
			},
		},
		{
			name:  "insert failure rolls back",
			batch: batch(record("a", "A")),
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO tenders`).WithArgs(anyArgs(1)...).WillReturnError(errors.New("connection reset"))
				mock.ExpectRollback()
			},
			wantErr: "upsert tenders: connection reset",
		},
		{
			name:  "begin failure",
			batch: batch(record("a", "A")),
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin().WillReturnError(errors.New("too many clients"))
			},
			wantErr: "begin transaction",
		},
		{
			name:  "commit failure",
			batch: batch(record("a", "A")),
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO tenders`).WithArgs(anyArgs(1)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectExec(`INSERT INTO tender_sources`).
					WithArgs("find_a_tender", at, 1, "run-1").
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))
			},
			wantErr: "commit transaction",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setup(mock)

			err = NewPostgresWith(mock).Push(context.Background(), tt.batch)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
