package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{db: db}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO uetr_tracking`).
		WithArgs(sqlmock.AnyArg(), "20260827-PE01-PA01-Z4K9-1A2B3C4D5E6F", "pain.001", "ZA01", "MSG-1",
			DirectionOutbound, StatusPending, "", "", SourceGenerated, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	err = repo.Append(ctx, &TrackingRecord{
		Uetr:        "20260827-PE01-PA01-Z4K9-1A2B3C4D5E6F",
		MessageType: "pain.001",
		TenantID:    "ZA01",
		MessageID:   "MSG-1",
		Direction:   DirectionOutbound,
		Status:      StatusPending,
		Source:      SourceGenerated,
	})
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchByUetr(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{db: db}

	created := time.Now()
	rows := sqlmock.NewRows([]string{"id", "uetr", "message_type", "tenant_id", "message_id", "direction", "status", "reason", "actor", "source", "created_at"}).
		AddRow("1", "20260827-PE01-PA01-Z4K9-1A2B3C4D5E6F", "pain.001", "ZA01", "MSG-1", "outbound", "pending", "", "", "generated", created).
		AddRow("2", "20260827-PE01-PA01-Z4K9-1A2B3C4D5E6F", "pacs.002", "ZA01", "MSG-2", "inbound", "completed", "settled", "bankserv", "generated", created.Add(time.Minute))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, uetr, message_type, tenant_id, message_id, direction, status, reason, actor, source, created_at FROM uetr_tracking WHERE uetr=\$1 ORDER BY created_at ASC`).
		WithArgs("20260827-PE01-PA01-Z4K9-1A2B3C4D5E6F").
		WillReturnRows(rows)
	mock.ExpectCommit()

	ctx := context.Background()
	records, err := repo.FetchByUetr(ctx, "20260827-PE01-PA01-Z4K9-1A2B3C4D5E6F")
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "pain.001", records[0].MessageType)
	assert.Equal(t, StatusPending, records[0].Status)
	assert.Equal(t, DirectionOutbound, records[0].Direction)
	assert.Equal(t, "pacs.002", records[1].MessageType)
	assert.Equal(t, StatusCompleted, records[1].Status)
	assert.Equal(t, "settled", records[1].Reason)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{db: db}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO uetr_tracking`).
		WithArgs(sqlmock.AnyArg(), "20260827-PE01-PA01-Z4K9-1A2B3C4D5E6F", StatusProcessing, "submitted to clearing", "bankserv-adapter", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	err = repo.UpdateStatus(ctx, "20260827-PE01-PA01-Z4K9-1A2B3C4D5E6F", StatusProcessing, "submitted to clearing", "bankserv-adapter")
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchUnpublished(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{db: db}

	rows := sqlmock.NewRows([]string{"id", "uetr", "message_type", "tenant_id", "status", "publish_attempts"}).
		AddRow("1", "20260827-PE01-PA01-Z4K9-1A2B3C4D5E6F", "pain.001", "ZA01", "pending", 0).
		AddRow("2", "20260827-PE01-PC08-Q7W2-AABBCCDDEEFF", "pacs.008", "ZA01", "processing", 2)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, uetr, message_type, tenant_id, status, publish_attempts FROM uetr_tracking WHERE published=false AND publish_attempts < \$1 ORDER BY created_at ASC FOR UPDATE SKIP LOCKED LIMIT \$2`).
		WithArgs(maxPublishAttempts, 10).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE uetr_tracking SET publish_attempts = publish_attempts \+ 1 WHERE id=\$1`).
		WithArgs("1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE uetr_tracking SET publish_attempts = publish_attempts \+ 1 WHERE id=\$1`).
		WithArgs("2").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	records, err := repo.FetchUnpublished(ctx, 10)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "1", records[0].ID)
	assert.Equal(t, StatusPending, records[0].Status)
	assert.Equal(t, 2, records[1].PublishAttempts)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPublished(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{db: db}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE uetr_tracking SET published=true WHERE id=\$1`).
		WithArgs("1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	err = repo.MarkPublished(ctx, "1")
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
