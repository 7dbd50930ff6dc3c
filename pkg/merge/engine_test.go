package merge

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clovercontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

const testTenant = "tenant-1"

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testContext() context.Context {
	ctx := clovercontext.SetTenantID(context.Background(), testTenant)
	return clovercontext.SetUserID(ctx, "agent-1")
}

type fakeTx struct {
	database.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) IsOpen() bool { return !t.committed && !t.rolledBack }

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	database.DB
	tx        *fakeTx
	getTxErr  error
	openCount int
}

func (db *fakeDB) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	if db.getTxErr != nil {
		return ctx, nil, db.getTxErr
	}
	db.openCount++
	db.tx = &fakeTx{}
	return ctx, db.tx, nil
}

type fakePersons struct {
	db           *fakeDB
	persons      map[string]*models.Person
	fullNames    map[string]string
	markedMerged map[string]string
}

func (f *fakePersons) DB() database.DB { return f.db }

func (f *fakePersons) Get(ctx context.Context, tenantID, id string) (*models.Person, error) {
	p, ok := f.persons[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "person not found")
	}
	clone := *p
	return &clone, nil
}

func (f *fakePersons) UpdateFullName(ctx context.Context, tenantID, id, fullName string) error {
	f.fullNames[id] = fullName
	return nil
}

func (f *fakePersons) MarkMerged(ctx context.Context, tenantID, id, survivorID string) error {
	f.markedMerged[id] = survivorID
	f.persons[id].MergedWith = &survivorID
	return nil
}

type fakeContacts struct {
	contacts    map[string][]models.ContactInfo
	editedIDs   []string
	mergedFrom  string
	mergedTo    string
	mergeFailed error
}

func (f *fakeContacts) ListByPersonID(ctx context.Context, tenantID, personID string) ([]models.ContactInfo, error) {
	return f.contacts[personID], nil
}

func (f *fakeContacts) ApplyEdits(ctx context.Context, tenantID string, personIDs []string, edits []models.ContactInfoEdit) error {
	for _, edit := range edits {
		f.editedIDs = append(f.editedIDs, edit.ID)
	}
	return nil
}

func (f *fakeContacts) MergeInto(ctx context.Context, tenantID, from, to string) error {
	if f.mergeFailed != nil {
		return f.mergeFailed
	}
	f.mergedFrom = from
	f.mergedTo = to
	return nil
}

type fakeParties struct {
	parties map[string]models.Party
}

func (f *fakeParties) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Party, error) {
	var result []models.Party
	for _, id := range ids {
		if p, ok := f.parties[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

type fakeMembers struct {
	memberships  map[string][]models.PartyMember
	ended        []string
	reassigned   bool
	excluded     []string
	memberStates map[string]models.PartyMemberState
}

func (f *fakeMembers) ListByPersonID(ctx context.Context, tenantID, personID string, activeOnly bool) ([]models.PartyMember, error) {
	return f.memberships[personID], nil
}

func (f *fakeMembers) EndMemberships(ctx context.Context, tenantID, personID string, partyIDs []string, endDate time.Time) error {
	f.ended = append(f.ended, partyIDs...)
	return nil
}

func (f *fakeMembers) ReassignPerson(ctx context.Context, tenantID, from, to string, excludePartyIDs []string) error {
	f.reassigned = true
	f.excluded = excludePartyIDs
	return nil
}

func (f *fakeMembers) UpdateMemberState(ctx context.Context, tenantID, partyID, personID string, state models.PartyMemberState) error {
	f.memberStates[partyID] = state
	return nil
}

type fakeApps struct {
	apps       map[string][]models.PersonApplication
	reassigned bool
	endedIDs   []string
	copies     []string
}

func (f *fakeApps) ListByPersonID(ctx context.Context, tenantID, personID string) ([]models.PersonApplication, error) {
	return f.apps[personID], nil
}

func (f *fakeApps) ReassignPerson(ctx context.Context, tenantID, from, to string) error {
	f.reassigned = true
	return nil
}

func (f *fakeApps) MarkEndedAsMerged(ctx context.Context, tenantID string, ids []string, at time.Time) error {
	f.endedIDs = append(f.endedIDs, ids...)
	return nil
}

func (f *fakeApps) Copy(ctx context.Context, tenantID string, source models.PersonApplication, toPartyID, toPersonID string) (*models.PersonApplication, error) {
	clone := source
	clone.ID = "copy-of-" + source.ID
	clone.PartyID = toPartyID
	clone.PersonID = toPersonID
	f.copies = append(f.copies, clone.ID)
	return &clone, nil
}

type fakeComms struct {
	merged bool
	err    error
}

func (f *fakeComms) MergeThreads(ctx context.Context, tenantID, baseID, otherID string) error {
	if f.err != nil {
		return f.err
	}
	f.merged = true
	return nil
}

type fakeUnsubs struct{ merged bool }

func (f *fakeUnsubs) MergeInto(ctx context.Context, tenantID, from, to string) error {
	f.merged = true
	return nil
}

type fakeTasks struct {
	prunedParties []string
	canceledFor   []string
}

func (f *fakeTasks) PruneAppointmentAttendee(ctx context.Context, tenantID string, partyIDs []string, personID string, partyMemberIDs []string) error {
	f.prunedParties = append(f.prunedParties, partyIDs...)
	return nil
}

func (f *fakeTasks) CancelCompleteContactInfoTasks(ctx context.Context, tenantID string, personIDs []string) error {
	f.canceledFor = append(f.canceledFor, personIDs...)
	return nil
}

type fakeExternal struct {
	infos    map[string][]models.ExternalPartyMemberInfo
	archived []string
	promoted []string
}

func (f *fakeExternal) ListActiveForPersonInParties(ctx context.Context, tenantID, personID string, partyIDs []string) ([]models.ExternalPartyMemberInfo, error) {
	return f.infos[personID], nil
}

func (f *fakeExternal) Archive(ctx context.Context, tenantID string, ids []string, at time.Time) error {
	f.archived = append(f.archived, ids...)
	return nil
}

func (f *fakeExternal) Promote(ctx context.Context, tenantID string, source models.ExternalPartyMemberInfo, toPersonID string) (*models.ExternalPartyMemberInfo, error) {
	f.promoted = append(f.promoted, source.ID)
	promoted := source
	promoted.PersonID = toPersonID
	return &promoted, nil
}

type fakeCommonUsers struct{ promoted bool }

func (f *fakeCommonUsers) PromoteIfAbsent(ctx context.Context, tenantID, from, to string) error {
	f.promoted = true
	return nil
}

type fakeStrongMatches struct {
	match       *models.StrongMatch
	confirmed   []string
	deletedFor  []string
	regenerated int
}

func (f *fakeStrongMatches) GetBetween(ctx context.Context, tenantID, firstID, secondID string) (*models.StrongMatch, error) {
	return f.match, nil
}

func (f *fakeStrongMatches) Confirm(ctx context.Context, tenantID, id string) error {
	f.confirmed = append(f.confirmed, id)
	return nil
}

func (f *fakeStrongMatches) DeleteUnresolvedForPersons(ctx context.Context, tenantID string, personIDs []string) error {
	f.deletedFor = append(f.deletedFor, personIDs...)
	return nil
}

func (f *fakeStrongMatches) RegenerateForPerson(ctx context.Context, tenantID, personID string) (int, error) {
	return f.regenerated, nil
}

type fakeActivityLogs struct{ partyIDs []string }

func (f *fakeActivityLogs) Create(ctx context.Context, tenantID, partyID string, logType models.ActivityLogType, details any, createdBy string) (*models.ActivityLog, error) {
	f.partyIDs = append(f.partyIDs, partyID)
	return &models.ActivityLog{ID: "log-1", PartyID: partyID, Type: logType}, nil
}

type fakeRecomputer struct {
	recomputed []string
	state      models.PartyState
	changed    bool
}

func (f *fakeRecomputer) RecomputeState(ctx context.Context, tenantID, partyID string) (models.PartyState, bool, error) {
	f.recomputed = append(f.recomputed, partyID)
	return f.state, f.changed, nil
}

type publishedEvent struct {
	eventType string
	committed bool
}

type fakeSearch struct{ removed []string }

func (f *fakeSearch) RemovePerson(ctx context.Context, tenantID, personID string) error {
	f.removed = append(f.removed, personID)
	return nil
}

// harness wires an engine over fakes with a two-person scenario:
// p1 holds an unpaid application in its own party-b, p2 holds a paid one in
// the shared party-a, so p2 survives.
type harness struct {
	engine        *Engine
	db            *fakeDB
	persons       *fakePersons
	contacts      *fakeContacts
	members       *fakeMembers
	apps          *fakeApps
	comms         *fakeComms
	unsubs        *fakeUnsubs
	tasks         *fakeTasks
	external      *fakeExternal
	commonUsers   *fakeCommonUsers
	strongMatches *fakeStrongMatches
	activityLogs  *fakeActivityLogs
	recomputer    *fakeRecomputer
	publisher     *recordingPublisher
	search        *fakeSearch
}

type recordingPublisher struct {
	db           *fakeDB
	personMerged []publishedEvent
	partyUpdated []publishedEvent
}

func (p *recordingPublisher) PersonMerged(ctx context.Context, tenantID, survivorID, retiredID string, partyIDs []string) error {
	committed := p.db.tx != nil && p.db.tx.committed
	p.personMerged = append(p.personMerged, publishedEvent{eventType: survivorID + "<-" + retiredID, committed: committed})
	return nil
}

func (p *recordingPublisher) PartyUpdated(ctx context.Context, tenantID, partyID string, state models.PartyState) error {
	committed := p.db.tx != nil && p.db.tx.committed
	p.partyUpdated = append(p.partyUpdated, publishedEvent{eventType: partyID, committed: committed})
	return nil
}

func newHarness() *harness {
	db := &fakeDB{}

	persons := &fakePersons{
		db: db,
		persons: map[string]*models.Person{
			"p1": {ID: "p1", TenantID: testTenant, FullName: "Jane Smith"},
			"p2": {ID: "p2", TenantID: testTenant, FullName: ""},
		},
		fullNames:    map[string]string{},
		markedMerged: map[string]string{},
	}

	contacts := &fakeContacts{
		contacts: map[string][]models.ContactInfo{
			"p1": {{ID: "ci-1", PersonID: "p1", Type: models.ContactInfoTypeEmail, Value: "jane@example.com"}},
			"p2": {{ID: "ci-2", PersonID: "p2", Type: models.ContactInfoTypePhone, Value: "+15550001111"}},
		},
	}

	parties := &fakeParties{
		parties: map[string]models.Party{
			"party-a": {ID: "party-a", TenantID: testTenant, State: models.PartyStateApplicant, WorkflowName: models.WorkflowNewLease},
			"party-b": {ID: "party-b", TenantID: testTenant, State: models.PartyStateLead, WorkflowName: models.WorkflowNewLease},
		},
	}

	members := &fakeMembers{
		memberships: map[string][]models.PartyMember{
			"p1": {
				{ID: "m1", PartyID: "party-a", PersonID: "p1"},
				{ID: "m2", PartyID: "party-b", PersonID: "p1"},
			},
			"p2": {
				{ID: "m3", PartyID: "party-a", PersonID: "p2"},
			},
		},
		memberStates: map[string]models.PartyMemberState{},
	}

	apps := &fakeApps{
		apps: map[string][]models.PersonApplication{
			"p1": {{ID: "app-p1", PersonID: "p1", PartyID: "party-b", Status: models.ApplicationStatusSent}},
			"p2": {{ID: "app-p2", PersonID: "p2", PartyID: "party-a", Status: models.ApplicationStatusPaid, PaymentCompleted: true}},
		},
	}

	external := &fakeExternal{
		infos: map[string][]models.ExternalPartyMemberInfo{
			"p1": {{ID: "ext-1", PersonID: "p1", PartyID: "party-a", ExternalID: "yardi-1"}},
		},
	}

	comms := &fakeComms{}
	unsubs := &fakeUnsubs{}
	tasks := &fakeTasks{}
	commonUsers := &fakeCommonUsers{}
	strongMatches := &fakeStrongMatches{
		match: &models.StrongMatch{
			ID:             "sm-1",
			FirstPersonID:  "p1",
			SecondPersonID: "p2",
			Status:         models.StrongMatchStatusNone,
		},
		regenerated: 2,
	}
	activityLogs := &fakeActivityLogs{}
	recomputer := &fakeRecomputer{state: models.PartyStateApplicant, changed: true}
	publisher := &recordingPublisher{db: db}
	search := &fakeSearch{}

	logger := testLogger()
	engine := NewEngine(logger, Dependencies{
		Persons:         persons,
		ContactInfos:    contacts,
		Parties:         parties,
		PartyMembers:    members,
		Applications:    apps,
		Communications:  comms,
		Unsubscriptions: unsubs,
		Tasks:           tasks,
		ExternalInfos:   external,
		CommonUsers:     commonUsers,
		StrongMatches:   strongMatches,
		ActivityLogs:    activityLogs,
		Recomputer:      recomputer,
		Notifier:        NewNotifier(publisher, search, logger),
	})

	return &harness{
		engine:        engine,
		db:            db,
		persons:       persons,
		contacts:      contacts,
		members:       members,
		apps:          apps,
		comms:         comms,
		unsubs:        unsubs,
		tasks:         tasks,
		external:      external,
		commonUsers:   commonUsers,
		strongMatches: strongMatches,
		activityLogs:  activityLogs,
		recomputer:    recomputer,
		publisher:     publisher,
		search:        search,
	}
}

func TestEngine_CanMerge(t *testing.T) {
	t.Run("eligible pair", func(t *testing.T) {
		h := newHarness()
		assert.NoError(t, h.engine.CanMerge(testContext(), "p1", "p2"))
	})

	t.Run("both persons hold paid applications", func(t *testing.T) {
		h := newHarness()
		h.apps.apps["p1"] = []models.PersonApplication{
			{ID: "app-p1", PersonID: "p1", PartyID: "party-b", Status: models.ApplicationStatusPaid, PaymentCompleted: true},
		}

		err := h.engine.CanMerge(testContext(), "p1", "p2")
		require.Error(t, err)
		assert.Equal(t, http.StatusPreconditionFailed, httperror.GetStatusCode(err))
		assert.Contains(t, err.Error(), ErrCodeBothApplied)
	})

	t.Run("person already merged", func(t *testing.T) {
		h := newHarness()
		survivor := "p3"
		h.persons.persons["p1"].MergedWith = &survivor

		err := h.engine.CanMerge(testContext(), "p1", "p2")
		require.Error(t, err)
		assert.Equal(t, http.StatusPreconditionFailed, httperror.GetStatusCode(err))
		assert.Contains(t, err.Error(), ErrCodeAlreadyMerged)
	})

	t.Run("unknown person", func(t *testing.T) {
		h := newHarness()

		err := h.engine.CanMerge(testContext(), "p1", "missing")
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})
}

func TestEngine_Merge(t *testing.T) {
	h := newHarness()

	result, err := h.engine.Merge(testContext(), models.MergePersonsRequest{
		FirstPersonID:  "p1",
		SecondPersonID: "p2",
	})
	require.NoError(t, err)

	// p2 holds the paid application, so it survives and p1 retires.
	assert.Equal(t, "p2", result.Survivor.ID)
	assert.Equal(t, "p1", result.RetiredPersonID)
	assert.Equal(t, "p2", h.persons.markedMerged["p1"])

	require.NotNil(t, h.db.tx)
	assert.True(t, h.db.tx.committed)
	assert.False(t, h.db.tx.rolledBack)

	// Name fills from the retiring person since the survivor had none.
	assert.Equal(t, "Jane Smith", h.persons.fullNames["p2"])

	assert.Equal(t, "p1", h.contacts.mergedFrom)
	assert.Equal(t, "p2", h.contacts.mergedTo)
	assert.True(t, h.comms.merged)
	assert.True(t, h.unsubs.merged)
	assert.True(t, h.commonUsers.promoted)

	// party-a is the shared party: membership ends there, appointments are
	// pruned there, and the external linkage moves across.
	assert.Equal(t, []string{"party-a"}, h.members.ended)
	assert.Equal(t, []string{"party-a"}, h.tasks.prunedParties)
	assert.Equal(t, []string{"ext-1"}, h.external.archived)
	assert.Equal(t, []string{"ext-1"}, h.external.promoted)
	assert.True(t, h.members.reassigned)
	assert.Equal(t, []string{"party-a"}, h.members.excluded)
	assert.True(t, h.apps.reassigned)

	// p1's application in party-b migrates, so the survivor becomes an
	// applicant there and the party recomputes.
	assert.Equal(t, []string{"app-p1"}, result.MigratedApplicationIDs)
	assert.Empty(t, result.SupersededApplicationIDs)
	assert.Equal(t, models.PartyMemberStateApplicant, h.members.memberStates["party-b"])
	assert.Equal(t, []string{"party-b"}, h.recomputer.recomputed)

	assert.Equal(t, []string{"sm-1"}, h.strongMatches.confirmed)
	assert.ElementsMatch(t, []string{"p1", "p2"}, h.strongMatches.deletedFor)

	assert.ElementsMatch(t, []string{"party-a", "party-b"}, h.activityLogs.partyIDs)
	assert.ElementsMatch(t, []string{"p1", "p2"}, h.tasks.canceledFor)

	// Notifications leave only after commit.
	require.Len(t, h.publisher.personMerged, 1)
	assert.Equal(t, "p2<-p1", h.publisher.personMerged[0].eventType)
	assert.True(t, h.publisher.personMerged[0].committed)
	require.Len(t, h.publisher.partyUpdated, 1)
	assert.Equal(t, "party-b", h.publisher.partyUpdated[0].eventType)
	assert.True(t, h.publisher.partyUpdated[0].committed)
	assert.Equal(t, []string{"p1"}, h.search.removed)
}

func TestEngine_Merge_RollsBackOnFailure(t *testing.T) {
	h := newHarness()
	boom := errors.New("thread merge exploded")
	h.comms.err = boom

	_, err := h.engine.Merge(testContext(), models.MergePersonsRequest{
		FirstPersonID:  "p1",
		SecondPersonID: "p2",
	})
	require.Error(t, err)
	assert.Equal(t, boom, err)

	require.NotNil(t, h.db.tx)
	assert.True(t, h.db.tx.rolledBack)
	assert.False(t, h.db.tx.committed)

	// Nothing escapes a rolled back merge.
	assert.Empty(t, h.publisher.personMerged)
	assert.Empty(t, h.publisher.partyUpdated)
	assert.Empty(t, h.search.removed)
}

func TestEngine_Merge_RejectsWhenBothPaid(t *testing.T) {
	h := newHarness()
	h.apps.apps["p1"] = []models.PersonApplication{
		{ID: "app-p1", PersonID: "p1", PartyID: "party-b", Status: models.ApplicationStatusPaid, PaymentCompleted: true},
	}

	_, err := h.engine.Merge(testContext(), models.MergePersonsRequest{
		FirstPersonID:  "p1",
		SecondPersonID: "p2",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusPreconditionFailed, httperror.GetStatusCode(err))

	// Rejected before any transaction was opened.
	assert.Equal(t, 0, h.db.openCount)
	assert.Empty(t, h.persons.markedMerged)
}

type failingLocker struct{}

func (failingLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	return nil, errors.New("lock not acquired")
}

func TestEngine_Merge_LockContention(t *testing.T) {
	h := newHarness()
	h.engine.deps.Locker = failingLocker{}

	_, err := h.engine.Merge(testContext(), models.MergePersonsRequest{
		FirstPersonID:  "p1",
		SecondPersonID: "p2",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	assert.Equal(t, 0, h.db.openCount)
}

func TestEngine_Merge_ContactInfoEdits(t *testing.T) {
	h := newHarness()
	isSpam := true

	_, err := h.engine.Merge(testContext(), models.MergePersonsRequest{
		FirstPersonID:  "p1",
		SecondPersonID: "p2",
		ContactInfoEdits: []models.ContactInfoEdit{
			{ID: "ci-1", IsSpam: &isSpam},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ci-1"}, h.contacts.editedIDs)
}
