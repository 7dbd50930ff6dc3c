package merge

import (
	"context"
	"database/sql"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	clovercontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// PersonStore is the person persistence the engine depends on.
type PersonStore interface {
	DB() database.DB
	Get(ctx context.Context, tenantID, id string) (*models.Person, error)
	UpdateFullName(ctx context.Context, tenantID, id, fullName string) error
	MarkMerged(ctx context.Context, tenantID, id, survivorID string) error
}

// ContactInfoStore merges and corrects contact info entries.
type ContactInfoStore interface {
	ListByPersonID(ctx context.Context, tenantID, personID string) ([]models.ContactInfo, error)
	ApplyEdits(ctx context.Context, tenantID string, personIDs []string, edits []models.ContactInfoEdit) error
	MergeInto(ctx context.Context, tenantID, fromPersonID, toPersonID string) error
}

// PartyStore loads the parties both persons belong to.
type PartyStore interface {
	GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Party, error)
}

// PartyMemberStore rewires party memberships during a merge.
type PartyMemberStore interface {
	ListByPersonID(ctx context.Context, tenantID, personID string, activeOnly bool) ([]models.PartyMember, error)
	EndMemberships(ctx context.Context, tenantID, personID string, partyIDs []string, endDate time.Time) error
	ReassignPerson(ctx context.Context, tenantID, fromPersonID, toPersonID string, excludePartyIDs []string) error
	UpdateMemberState(ctx context.Context, tenantID, partyID, personID string, state models.PartyMemberState) error
}

// ApplicationStore reassigns, closes and clones rental applications.
type ApplicationStore interface {
	ListByPersonID(ctx context.Context, tenantID, personID string) ([]models.PersonApplication, error)
	ReassignPerson(ctx context.Context, tenantID, fromPersonID, toPersonID string) error
	MarkEndedAsMerged(ctx context.Context, tenantID string, ids []string, at time.Time) error
	Copy(ctx context.Context, tenantID string, source models.PersonApplication, toPartyID, toPersonID string) (*models.PersonApplication, error)
}

// ThreadMerger reassigns communications and unifies their threads.
type ThreadMerger interface {
	MergeThreads(ctx context.Context, tenantID, basePersonID, otherPersonID string) error
}

// UnsubscriptionStore carries notification opt-outs over to the survivor.
type UnsubscriptionStore interface {
	MergeInto(ctx context.Context, tenantID, fromPersonID, toPersonID string) error
}

// TaskStore prunes appointment attendees and cancels stale tasks.
type TaskStore interface {
	PruneAppointmentAttendee(ctx context.Context, tenantID string, partyIDs []string, personID string, partyMemberIDs []string) error
	CancelCompleteContactInfoTasks(ctx context.Context, tenantID string, personIDs []string) error
}

// ExternalInfoStore archives and promotes external system linkages.
type ExternalInfoStore interface {
	ListActiveForPersonInParties(ctx context.Context, tenantID, personID string, partyIDs []string) ([]models.ExternalPartyMemberInfo, error)
	Archive(ctx context.Context, tenantID string, ids []string, at time.Time) error
	Promote(ctx context.Context, tenantID string, source models.ExternalPartyMemberInfo, toPersonID string) (*models.ExternalPartyMemberInfo, error)
}

// CommonUserStore moves identity-provider account links.
type CommonUserStore interface {
	PromoteIfAbsent(ctx context.Context, tenantID, fromPersonID, toPersonID string) error
}

// StrongMatchStore resolves and regenerates duplicate candidates.
type StrongMatchStore interface {
	GetBetween(ctx context.Context, tenantID, firstPersonID, secondPersonID string) (*models.StrongMatch, error)
	Confirm(ctx context.Context, tenantID, id string) error
	DeleteUnresolvedForPersons(ctx context.Context, tenantID string, personIDs []string) error
	RegenerateForPerson(ctx context.Context, tenantID, personID string) (int, error)
}

// ActivityLogStore writes merge audit entries.
type ActivityLogStore interface {
	Create(ctx context.Context, tenantID, partyID string, logType models.ActivityLogType, details any, createdBy string) (*models.ActivityLog, error)
}

// StateRecomputer re-derives a party's lifecycle stage after merge-driven
// mutations.
type StateRecomputer interface {
	RecomputeState(ctx context.Context, tenantID, partyID string) (models.PartyState, bool, error)
}

// Locker serializes merges touching the same person. Acquire returns the
// release function for the held lock.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// Dependencies bundles the collaborators the engine drives.
type Dependencies struct {
	Persons         PersonStore
	ContactInfos    ContactInfoStore
	Parties         PartyStore
	PartyMembers    PartyMemberStore
	Applications    ApplicationStore
	Communications  ThreadMerger
	Unsubscriptions UnsubscriptionStore
	Tasks           TaskStore
	ExternalInfos   ExternalInfoStore
	CommonUsers     CommonUserStore
	StrongMatches   StrongMatchStore
	ActivityLogs    ActivityLogStore
	Recomputer      StateRecomputer
	Notifier        *Notifier
	Locker          Locker
	LockTTL         time.Duration
}

// Engine consolidates two person records into one. All writes happen in a
// single transaction; events and search index updates are deferred until the
// transaction commits.
type Engine struct {
	logger ectologger.Logger
	deps   Dependencies
}

// NewEngine creates a merge engine with the given collaborators.
func NewEngine(logger ectologger.Logger, deps Dependencies) *Engine {
	return &Engine{
		logger: logger,
		deps:   deps,
	}
}

// personContext is everything the engine loads about one side of a merge.
type personContext struct {
	person       *models.Person
	snapshot     PersonSnapshot
	memberships  []models.PartyMember
	parties      []models.Party
	contactInfos []models.ContactInfo
}

func (p *personContext) partyIDs() []string {
	return ectolinq.Map(p.parties, func(party models.Party) string {
		return party.ID
	})
}

func (p *personContext) activeMemberIDs() []string {
	active := ectolinq.Filter(p.memberships, func(m models.PartyMember) bool {
		return m.IsActive()
	})
	return ectolinq.Map(active, func(m models.PartyMember) string {
		return m.ID
	})
}

func (e *Engine) loadPerson(ctx context.Context, tenantID, id string) (*personContext, error) {
	person, err := e.deps.Persons.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	apps, err := e.deps.Applications.ListByPersonID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	memberships, err := e.deps.PartyMembers.ListByPersonID(ctx, tenantID, id, false)
	if err != nil {
		return nil, err
	}

	partyIDs := uniqueStrings(ectolinq.Map(memberships, func(m models.PartyMember) string {
		return m.PartyID
	}))
	parties, err := e.deps.Parties.GetByIDs(ctx, tenantID, partyIDs)
	if err != nil {
		return nil, err
	}

	contactInfos, err := e.deps.ContactInfos.ListByPersonID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	return &personContext{
		person:      person,
		memberships: memberships,
		parties:     parties,
		snapshot: PersonSnapshot{
			Person:       person,
			Applications: apps,
			PartyStates: ectolinq.Map(parties, func(party models.Party) models.PartyState {
				return party.State
			}),
		},
		contactInfos: contactInfos,
	}, nil
}

func (e *Engine) checkPreconditions(first, second *personContext) error {
	if first.person.IsMerged() || second.person.IsMerged() {
		metrics.PreconditionRejections.WithLabelValues("already_merged").Inc()
		return errAlreadyMerged()
	}

	if first.snapshot.HasPaidApplication() && second.snapshot.HasPaidApplication() {
		metrics.PreconditionRejections.WithLabelValues("both_applied").Inc()
		return errBothApplied()
	}

	return nil
}

// CanMerge reports whether the two persons are currently mergeable without
// mutating anything. It returns the same precondition errors Merge would.
func (e *Engine) CanMerge(ctx context.Context, firstID, secondID string) error {
	ctx, span := tracing.StartSpan(ctx, "merge.Engine.CanMerge")
	defer span.End()

	tenantID := clovercontext.GetTenantID(ctx)

	first, err := e.loadPerson(ctx, tenantID, firstID)
	if err != nil {
		return err
	}
	second, err := e.loadPerson(ctx, tenantID, secondID)
	if err != nil {
		return err
	}

	return e.checkPreconditions(first, second)
}

// Merge consolidates the second person into the first, or the first into the
// second, whichever the base selection rules pick. On any failure every
// mutation is rolled back and the error is returned unchanged.
func (e *Engine) Merge(ctx context.Context, req models.MergePersonsRequest) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "merge.Engine.Merge")
	defer span.End()

	tenantID := clovercontext.GetTenantID(ctx)
	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":        tenantID,
		"first_person_id":  req.FirstPersonID,
		"second_person_id": req.SecondPersonID,
	})
	start := time.Now()

	if e.deps.Locker != nil {
		// Locks are taken in sorted id order so concurrent merges over
		// the same pair cannot deadlock.
		keys := []string{req.FirstPersonID, req.SecondPersonID}
		sort.Strings(keys)
		for _, key := range keys {
			release, err := e.deps.Locker.Acquire(ctx, "person-merge:"+tenantID+":"+key, e.deps.LockTTL)
			if err != nil {
				log.WithError(err).Warn("Failed to acquire person merge lock")
				metrics.MergesTotal.WithLabelValues("locked").Inc()
				return nil, httperror.NewHTTPError(http.StatusConflict, "another merge involving this person is in progress")
			}
			defer release(ctx)
		}
	}

	first, err := e.loadPerson(ctx, tenantID, req.FirstPersonID)
	if err != nil {
		return nil, err
	}
	second, err := e.loadPerson(ctx, tenantID, req.SecondPersonID)
	if err != nil {
		return nil, err
	}
	if err := e.checkPreconditions(first, second); err != nil {
		return nil, err
	}

	base, other := first, second
	if SelectBase(first.snapshot, second.snapshot) == second.person.ID {
		base, other = second, first
	}
	log = log.WithFields(map[string]any{
		"survivor_id": base.person.ID,
		"retired_id":  other.person.ID,
	})

	batch := NewNotificationBatch()

	ctxTx, tx, err := e.deps.Persons.DB().GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	result, err := e.apply(ctxTx, tenantID, req, base, other, batch)
	if err != nil {
		log.WithError(err).Error("Person merge failed, rolling back")
		metrics.MergesTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit person merge")
		metrics.MergesTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	e.deps.Notifier.Flush(ctx, tenantID, batch)

	if survivor, err := e.deps.Persons.Get(ctx, tenantID, base.person.ID); err != nil {
		log.WithError(err).Warn("Failed to re-read survivor after merge")
	} else {
		result.Survivor = survivor
	}

	metrics.MergesTotal.WithLabelValues("success").Inc()
	metrics.MergeDuration.Observe(time.Since(start).Seconds())
	log.WithField("affected_party_count", len(result.AffectedPartyIDs)).Info("Persons merged")

	return result, nil
}

// apply runs the merge steps inside the transaction carried by ctx.
func (e *Engine) apply(ctx context.Context, tenantID string, req models.MergePersonsRequest, base, other *personContext, batch *NotificationBatch) (*models.MergeResult, error) {
	now := time.Now().UTC()
	deps := e.deps

	baseID := base.person.ID
	otherID := other.person.ID

	basePartyIDs := base.partyIDs()
	sharedPartyIDs := intersectStrings(basePartyIDs, other.partyIDs())
	otherOnlyPartyIDs := subtractStrings(other.partyIDs(), sharedPartyIDs)

	// Parties where both sides still hold an active membership. Only these
	// carry appointments worth pruning.
	openSharedPartyIDs := intersectStrings(
		activePartyIDs(base.memberships),
		activePartyIDs(other.memberships),
	)

	if len(req.ContactInfoEdits) > 0 {
		if err := deps.ContactInfos.ApplyEdits(ctx, tenantID, []string{baseID, otherID}, req.ContactInfoEdits); err != nil {
			return nil, err
		}
	}

	if base.person.FullName == "" && other.person.FullName != "" {
		if err := deps.Persons.UpdateFullName(ctx, tenantID, baseID, other.person.FullName); err != nil {
			return nil, err
		}
		base.person.FullName = other.person.FullName
	}

	if err := deps.ContactInfos.MergeInto(ctx, tenantID, otherID, baseID); err != nil {
		return nil, err
	}

	if err := deps.Communications.MergeThreads(ctx, tenantID, baseID, otherID); err != nil {
		return nil, err
	}

	if err := deps.Unsubscriptions.MergeInto(ctx, tenantID, otherID, baseID); err != nil {
		return nil, err
	}

	if err := deps.Tasks.PruneAppointmentAttendee(ctx, tenantID, openSharedPartyIDs, otherID, other.activeMemberIDs()); err != nil {
		return nil, err
	}

	if err := deps.PartyMembers.EndMemberships(ctx, tenantID, otherID, sharedPartyIDs, now); err != nil {
		return nil, err
	}

	if err := e.transferExternalInfos(ctx, tenantID, baseID, otherID, sharedPartyIDs, now); err != nil {
		return nil, err
	}

	if err := deps.PartyMembers.ReassignPerson(ctx, tenantID, otherID, baseID, sharedPartyIDs); err != nil {
		return nil, err
	}
	if err := deps.Applications.ReassignPerson(ctx, tenantID, otherID, baseID); err != nil {
		return nil, err
	}

	reconciliation := Reconcile(base.snapshot.Applications, other.snapshot.Applications, sharedPartyIDs, now)
	if len(reconciliation.Superseded) > 0 {
		ids := ectolinq.Map(reconciliation.Superseded, func(app models.PersonApplication) string {
			return app.ID
		})
		if err := deps.Applications.MarkEndedAsMerged(ctx, tenantID, ids, now); err != nil {
			return nil, err
		}
	}

	var copied []models.PersonApplication
	for _, candidate := range CopyCandidates(other.snapshot.Applications, other.parties, base.parties, base.snapshot.Applications) {
		clone, err := deps.Applications.Copy(ctx, tenantID, candidate.Application, candidate.TargetPartyID, baseID)
		if err != nil {
			return nil, err
		}
		copied = append(copied, *clone)
	}

	if err := deps.Persons.MarkMerged(ctx, tenantID, otherID, baseID); err != nil {
		return nil, err
	}
	batch.RecordSearchRemoval(otherID)

	if err := deps.CommonUsers.PromoteIfAbsent(ctx, tenantID, otherID, baseID); err != nil {
		return nil, err
	}

	// Migrated and cloned applications make the survivor an applicant in
	// their parties; every touched party re-derives its lifecycle stage.
	applicantParties := uniqueStrings(ectolinq.Map(
		append(append([]models.PersonApplication{}, reconciliation.Migrated...), copied...),
		func(app models.PersonApplication) string {
			return app.PartyID
		},
	))
	for _, partyID := range applicantParties {
		if err := deps.PartyMembers.UpdateMemberState(ctx, tenantID, partyID, baseID, models.PartyMemberStateApplicant); err != nil {
			return nil, err
		}
		state, changed, err := deps.Recomputer.RecomputeState(ctx, tenantID, partyID)
		if err != nil {
			return nil, err
		}
		if changed {
			batch.RecordPartyUpdate(partyID, state)
		}
	}

	if err := e.resolveStrongMatches(ctx, tenantID, baseID, otherID); err != nil {
		return nil, err
	}

	affectedPartyIDs := uniqueStrings(append(append(append([]string{}, basePartyIDs...), otherOnlyPartyIDs...), applicantParties...))
	if err := e.writeAuditEntries(ctx, tenantID, base, other, affectedPartyIDs, len(reconciliation.Superseded), now); err != nil {
		return nil, err
	}

	if err := deps.Tasks.CancelCompleteContactInfoTasks(ctx, tenantID, []string{baseID, otherID}); err != nil {
		return nil, err
	}

	batch.RecordPersonMerged(baseID, otherID, affectedPartyIDs)

	return &models.MergeResult{
		Survivor:         base.person,
		RetiredPersonID:  otherID,
		AffectedPartyIDs: affectedPartyIDs,
		MigratedApplicationIDs: ectolinq.Map(reconciliation.Migrated, func(app models.PersonApplication) string {
			return app.ID
		}),
		SupersededApplicationIDs: ectolinq.Map(reconciliation.Superseded, func(app models.PersonApplication) string {
			return app.ID
		}),
		CopiedApplicationIDs: ectolinq.Map(copied, func(app models.PersonApplication) string {
			return app.ID
		}),
	}, nil
}

// transferExternalInfos archives the retiring person's active linkages in
// shared parties, then recreates them for the survivor in parties where the
// survivor has none.
func (e *Engine) transferExternalInfos(ctx context.Context, tenantID, baseID, otherID string, sharedPartyIDs []string, now time.Time) error {
	if len(sharedPartyIDs) == 0 {
		return nil
	}

	otherInfos, err := e.deps.ExternalInfos.ListActiveForPersonInParties(ctx, tenantID, otherID, sharedPartyIDs)
	if err != nil {
		return err
	}
	if len(otherInfos) == 0 {
		return nil
	}

	baseInfos, err := e.deps.ExternalInfos.ListActiveForPersonInParties(ctx, tenantID, baseID, sharedPartyIDs)
	if err != nil {
		return err
	}
	basePartiesLinked := make(map[string]bool, len(baseInfos))
	for _, info := range baseInfos {
		basePartiesLinked[info.PartyID] = true
	}

	ids := ectolinq.Map(otherInfos, func(info models.ExternalPartyMemberInfo) string {
		return info.ID
	})
	if err := e.deps.ExternalInfos.Archive(ctx, tenantID, ids, now); err != nil {
		return err
	}

	for _, info := range otherInfos {
		if basePartiesLinked[info.PartyID] {
			continue
		}
		if _, err := e.deps.ExternalInfos.Promote(ctx, tenantID, info, baseID); err != nil {
			return err
		}
	}

	return nil
}

// resolveStrongMatches confirms the candidate that triggered this merge,
// discards every other unresolved candidate naming either person, and
// regenerates candidates for the survivor's merged contact set.
func (e *Engine) resolveStrongMatches(ctx context.Context, tenantID, baseID, otherID string) error {
	match, err := e.deps.StrongMatches.GetBetween(ctx, tenantID, baseID, otherID)
	if err != nil {
		return err
	}
	if match != nil && match.Status == models.StrongMatchStatusNone {
		if err := e.deps.StrongMatches.Confirm(ctx, tenantID, match.ID); err != nil {
			return err
		}
	}

	if err := e.deps.StrongMatches.DeleteUnresolvedForPersons(ctx, tenantID, []string{baseID, otherID}); err != nil {
		return err
	}

	regenerated, err := e.deps.StrongMatches.RegenerateForPerson(ctx, tenantID, baseID)
	if err != nil {
		return err
	}
	metrics.StrongMatchesRegenerated.Add(float64(regenerated))

	return nil
}

func (e *Engine) writeAuditEntries(ctx context.Context, tenantID string, base, other *personContext, partyIDs []string, supersededCount int, now time.Time) error {
	survivorAfter, err := e.deps.ContactInfos.ListByPersonID(ctx, tenantID, base.person.ID)
	if err != nil {
		return err
	}

	details := models.MergeAuditDetails{
		SurvivorID:      base.person.ID,
		RetiredID:       other.person.ID,
		SurvivorBefore:  auditSnapshot(base.person.FullName, base.contactInfos),
		RetiredBefore:   auditSnapshot(other.person.FullName, other.contactInfos),
		SurvivorAfter:   auditSnapshot(base.person.FullName, survivorAfter),
		MergedAt:        now,
		SupersededCount: supersededCount,
	}

	createdBy := clovercontext.GetUserID(ctx)
	for _, partyID := range partyIDs {
		if _, err := e.deps.ActivityLogs.Create(ctx, tenantID, partyID, models.ActivityLogTypePersonsMerged, details, createdBy); err != nil {
			return err
		}
	}

	return nil
}

func auditSnapshot(fullName string, contactInfos []models.ContactInfo) models.PersonAuditSnapshot {
	return models.PersonAuditSnapshot{
		FullName: fullName,
		ContactInfo: ectolinq.Map(contactInfos, func(info models.ContactInfo) string {
			return info.Value
		}),
	}
}

func activePartyIDs(memberships []models.PartyMember) []string {
	active := ectolinq.Filter(memberships, func(m models.PartyMember) bool {
		return m.IsActive()
	})
	return uniqueStrings(ectolinq.Map(active, func(m models.PartyMember) string {
		return m.PartyID
	}))
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	return result
}

func intersectStrings(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, v := range b {
		inB[v] = true
	}
	return ectolinq.Filter(uniqueStrings(a), func(v string) bool {
		return inB[v]
	})
}

func subtractStrings(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, v := range b {
		inB[v] = true
	}
	return ectolinq.Filter(uniqueStrings(a), func(v string) bool {
		return !inB[v]
	})
}
