package communication_test

import (
	"context"
	"os"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/repositories/communication"
	clovercontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

func getTestLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func getTestDB(t *testing.T) database.DB {
	// Use environment variables or defaults for test DB
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "coordinator"
	}
	dbUser := os.Getenv("DB_USER_NAME")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		dbPass = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "clover"
	}

	dsn := "host=" + dbHost + " user=" + dbUser + " password=" + dbPass + " dbname=" + dbName + " sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	return database.NewDatabaseInstance(db, getTestLogger())
}

func getTestContext(tenantID string) context.Context {
	return clovercontext.SetTenantID(context.Background(), tenantID)
}

func insertComm(t *testing.T, db database.DB, tenantID string, commType models.CommunicationType, threadID string, personIDs, partyIDs []string) string {
	t.Helper()

	id := uuid.New().String()
	query := `
		INSERT INTO communications (id, tenant_id, type, thread_id, person_ids, party_ids, direction)
		VALUES ($1, $2, $3, $4, $5, $6, 'INBOUND')
	`
	_, err := db.ExecContext(context.Background(), query, id, tenantID, string(commType), threadID, pq.Array(personIDs), pq.Array(partyIDs))
	require.NoError(t, err, "Failed to insert communication")

	return id
}

func threadsByType(comms []models.Communication) map[models.CommunicationType]map[string]bool {
	threads := map[models.CommunicationType]map[string]bool{}
	for _, comm := range comms {
		if threads[comm.Type] == nil {
			threads[comm.Type] = map[string]bool{}
		}
		threads[comm.Type][comm.ThreadID] = true
	}
	return threads
}

func TestRepository_MergeThreads(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := communication.NewRepository(db, getTestLogger())

	tenantID := uuid.New().String()
	ctx := getTestContext(tenantID)
	t.Cleanup(func() {
		_, err := db.ExecContext(context.Background(), "DELETE FROM communications WHERE tenant_id = $1", tenantID)
		require.NoError(t, err)
	})

	basePersonID := uuid.New().String()
	otherPersonID := uuid.New().String()
	partyID := uuid.New().String()
	otherPartyID := uuid.New().String()

	// Same endpoints, separate SMS threads held by each person.
	insertComm(t, db, tenantID, models.CommunicationTypeSMS, "thread-sms-a", []string{basePersonID}, []string{partyID})
	insertComm(t, db, tenantID, models.CommunicationTypeSMS, "thread-sms-b", []string{otherPersonID}, []string{partyID})

	// Same endpoints, separate EMAIL threads.
	insertComm(t, db, tenantID, models.CommunicationTypeEmail, "thread-email-a", []string{basePersonID}, []string{partyID})
	insertComm(t, db, tenantID, models.CommunicationTypeEmail, "thread-email-b", []string{otherPersonID}, []string{partyID})

	// SMS thread with a different party set stays separate.
	insertComm(t, db, tenantID, models.CommunicationTypeSMS, "thread-sms-c", []string{otherPersonID}, []string{otherPartyID})

	err := repo.MergeThreads(ctx, tenantID, basePersonID, otherPersonID)
	require.NoError(t, err)

	comms, err := repo.ListByPersonID(ctx, tenantID, basePersonID)
	require.NoError(t, err)
	require.Len(t, comms, 5, "every communication should now reference the survivor")

	for _, comm := range comms {
		assert.Contains(t, []string(comm.PersonIDs), basePersonID)
		assert.NotContains(t, []string(comm.PersonIDs), otherPersonID)
	}

	threads := threadsByType(comms)

	// SMS between the same endpoints collapses onto one thread; the
	// differing party set keeps its own.
	assert.Equal(t, map[string]bool{"thread-sms-a": true, "thread-sms-c": true}, threads[models.CommunicationTypeSMS])

	// EMAIL threads are never unified.
	assert.Equal(t, map[string]bool{"thread-email-a": true, "thread-email-b": true}, threads[models.CommunicationTypeEmail])
}

func TestRepository_MergeThreads_UnifiesCalls(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := communication.NewRepository(db, getTestLogger())

	tenantID := uuid.New().String()
	ctx := getTestContext(tenantID)
	t.Cleanup(func() {
		_, err := db.ExecContext(context.Background(), "DELETE FROM communications WHERE tenant_id = $1", tenantID)
		require.NoError(t, err)
	})

	basePersonID := uuid.New().String()
	otherPersonID := uuid.New().String()
	partyID := uuid.New().String()

	insertComm(t, db, tenantID, models.CommunicationTypeCall, "thread-call-a", []string{basePersonID}, []string{partyID})
	insertComm(t, db, tenantID, models.CommunicationTypeCall, "thread-call-b", []string{otherPersonID}, []string{partyID})

	err := repo.MergeThreads(ctx, tenantID, basePersonID, otherPersonID)
	require.NoError(t, err)

	comms, err := repo.ListByPersonID(ctx, tenantID, basePersonID)
	require.NoError(t, err)
	require.Len(t, comms, 2)

	for _, comm := range comms {
		assert.Equal(t, "thread-call-a", comm.ThreadID)
	}
}

func TestRepository_MergeThreads_CollapsesSharedReference(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := communication.NewRepository(db, getTestLogger())

	tenantID := uuid.New().String()
	ctx := getTestContext(tenantID)
	t.Cleanup(func() {
		_, err := db.ExecContext(context.Background(), "DELETE FROM communications WHERE tenant_id = $1", tenantID)
		require.NoError(t, err)
	})

	basePersonID := uuid.New().String()
	otherPersonID := uuid.New().String()
	partyID := uuid.New().String()

	// A group SMS already referencing both persons keeps a single survivor
	// reference after the merge.
	insertComm(t, db, tenantID, models.CommunicationTypeSMS, "thread-group", []string{basePersonID, otherPersonID}, []string{partyID})

	err := repo.MergeThreads(ctx, tenantID, basePersonID, otherPersonID)
	require.NoError(t, err)

	comms, err := repo.ListByPersonID(ctx, tenantID, basePersonID)
	require.NoError(t, err)
	require.Len(t, comms, 1)
	assert.Equal(t, pq.StringArray{basePersonID}, comms[0].PersonIDs)
}
