package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecollab/backend/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestPlanService_InsertAndAccess(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"), user("bob"))
	now := time.Date(2024, 1, 2, 3, 4, 5, 678901234, time.UTC)
	w.plans.now = fixedClock(now)

	plan, err := w.plans.Insert(ctx, domain.VEPlan{Name: ptr("P1")}, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", plan.Author)
	assert.Equal(t, []string{"alice"}, plan.ReadAccess)
	assert.Equal(t, []string{"alice"}, plan.WriteAccess)
	require.NotNil(t, plan.CreationTimestamp)
	assert.Equal(t, now.Truncate(time.Millisecond), *plan.CreationTimestamp)
	assert.Contains(t, w.search.docs, plan.ID.Hex())

	got, err := w.plans.Get(ctx, plan.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, plan.ID, got.ID)

	_, err = w.plans.Get(ctx, plan.ID, "bob")
	assert.ErrorIs(t, err, ErrNoReadAccess)
	_, err = w.plans.UpdateField(ctx, plan.ID, "name", "P2", false, "bob")
	assert.ErrorIs(t, err, ErrNoWriteAccess)
	_, err = w.plans.Get(ctx, domain.NewID(), "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, w.plans.SetReadPermissions(ctx, plan.ID, "alice", []string{"bob"}))
	_, err = w.plans.Get(ctx, plan.ID, "bob")
	require.NoError(t, err)
	_, err = w.plans.UpdateField(ctx, plan.ID, "name", "P2", false, "bob")
	assert.ErrorIs(t, err, ErrNoWriteAccess)
	require.Len(t, w.notifier.of(domain.NotifPlanAccessGranted), 1)

	assert.ErrorIs(t, w.plans.SetWritePermissions(ctx, plan.ID, "bob", []string{"bob"}), domain.ErrInsufficientPermission)
}

func TestPlanService_GetBulkFiltersUnreadable(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"), user("bob"))
	mine, err := w.plans.Insert(ctx, domain.VEPlan{}, "alice")
	require.NoError(t, err)
	theirs, err := w.plans.Insert(ctx, domain.VEPlan{}, "bob")
	require.NoError(t, err)

	plans, err := w.plans.GetBulk(ctx, []domain.ID{mine.ID, theirs.ID, domain.NewID()}, "alice")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, mine.ID, plans[0].ID)
}

func TestPlanService_PartnersGainWriteAccess(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"), user("bob"), user("carol"))
	plan, err := w.plans.Insert(ctx, domain.VEPlan{Name: ptr("P1")}, "alice")
	require.NoError(t, err)

	updated, err := w.plans.UpdateField(ctx, plan.ID, "partners", []any{"bob", "ghost"}, false, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "ghost"}, updated.Partners)

	stored := w.planRepo.byID[plan.ID]
	assert.True(t, stored.CanWrite("bob"))
	assert.False(t, stored.CanRead("ghost"), "unknown users are skipped")

	partnered := w.notifier.of(domain.NotifPlanAddedAsPartner)
	require.Len(t, partnered, 1)
	assert.Equal(t, "bob", partnered[0].to)
	assert.Equal(t, "P1", partnered[0].payload["plan_name"])
	assert.Equal(t, []string{"plan_added_as_partner"}, w.tasks.names)

	_, err = w.plans.UpdateField(ctx, plan.ID, "partners", []any{"bob"}, false, "alice")
	require.NoError(t, err)
	assert.Len(t, w.notifier.of(domain.NotifPlanAddedAsPartner), 1, "existing partners are not notified again")
}

func TestPlanService_UpdateFieldRejectsUnknownField(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"))
	plan, err := w.plans.Insert(ctx, domain.VEPlan{}, "alice")
	require.NoError(t, err)

	_, err = w.plans.UpdateField(ctx, plan.ID, "author", "mallory", false, "alice")
	assert.ErrorIs(t, err, domain.ErrUnknownField)
	_, err = w.plans.UpdateField(ctx, plan.ID, "topics", 42, false, "alice")
	assert.ErrorIs(t, err, domain.ErrWrongType)
}

func TestPlanService_UpdateFieldUpsert(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"))
	id := domain.NewID()

	_, err := w.plans.UpdateField(ctx, id, "name", "fresh", false, "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	plan, err := w.plans.UpdateField(ctx, id, "name", "fresh", true, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, plan.ID)
	assert.Equal(t, "fresh", *plan.Name)
	assert.Equal(t, "alice", w.planRepo.byID[id].Author)
}

func TestPlanService_AppendStep(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"))
	plan, err := w.plans.Insert(ctx, domain.VEPlan{}, "alice")
	require.NoError(t, err)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	step := domain.Step{Name: "kickoff", Workload: 4, TimestampFrom: &from, TimestampTo: ptr(from.Add(48 * time.Hour))}
	updated, err := w.plans.AppendStep(ctx, plan.ID, step, "alice")
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Workload)
	require.NotNil(t, updated.Duration)
	assert.Equal(t, 48*time.Hour, *updated.Duration)

	last := w.planRepo.updates[len(w.planRepo.updates)-1]
	assert.Contains(t, last.fields, "steps")
	assert.Contains(t, last.fields, "workload")

	w.planRepo.byID[plan.ID] = updated
	_, err = w.plans.AppendStep(ctx, plan.ID, domain.Step{Name: "kickoff"}, "alice")
	assert.ErrorIs(t, err, domain.ErrNonUniqueStep)
}

func TestPlanService_Invitations(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"), user("bob"))
	plan, err := w.plans.Insert(ctx, domain.VEPlan{Name: ptr("P1")}, "alice")
	require.NoError(t, err)

	id, err := w.plans.InsertInvitation(ctx, domain.Invitation{PlanID: &plan.ID, Recipient: "bob", Message: "join us"}, "alice")
	require.NoError(t, err)
	assert.True(t, w.planRepo.byID[plan.ID].CanRead("bob"))
	require.Len(t, w.notifier.of(domain.NotifVEInvitation), 1)

	_, err = w.plans.GetInvitation(ctx, id, "carol")
	assert.ErrorIs(t, err, domain.ErrInsufficientPermission)
	inv, err := w.plans.GetInvitation(ctx, id, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", inv.Sender)

	assert.ErrorIs(t, w.plans.SetInvitationReply(ctx, id, "alice", true), domain.ErrInsufficientPermission)
	require.NoError(t, w.plans.SetInvitationReply(ctx, id, "bob", true))
	assert.True(t, w.planRepo.byID[plan.ID].CanWrite("bob"))
	replies := w.notifier.of(domain.NotifVEInvitationReply)
	require.Len(t, replies, 1)
	assert.Equal(t, "alice", replies[0].to)
	assert.Equal(t, true, replies[0].payload["accepted"])

	assert.ErrorIs(t, w.plans.SetInvitationReply(ctx, id, "bob", false), domain.ErrNotModified)
}

func TestPlanService_DeclinedInvitationRevokesRead(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"), user("bob"))
	plan, err := w.plans.Insert(ctx, domain.VEPlan{}, "alice")
	require.NoError(t, err)
	id, err := w.plans.InsertInvitation(ctx, domain.Invitation{PlanID: &plan.ID, Recipient: "bob"}, "alice")
	require.NoError(t, err)

	require.NoError(t, w.plans.SetInvitationReply(ctx, id, "bob", false))
	assert.False(t, w.planRepo.byID[plan.ID].CanRead("bob"))
}

func TestPlanService_CopyPlanIsIsolated(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"), user("bob"))
	plan, err := w.plans.Insert(ctx, domain.VEPlan{Name: ptr("P1"), Topics: []string{"climate"}}, "alice")
	require.NoError(t, err)
	ref, err := w.plans.PutLiteratureFile(ctx, plan.ID, "alice", Upload{FileName: "paper.pdf", ContentType: "application/pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	src := w.planRepo.byID[plan.ID]
	src.LiteratureFiles = []domain.FileRef{ref}
	w.planRepo.byID[plan.ID] = src
	require.NoError(t, w.plans.SetReadPermissions(ctx, plan.ID, "alice", []string{"bob"}))

	c, err := w.plans.CopyPlan(ctx, plan.ID, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, plan.ID, c.ID)
	assert.Equal(t, "bob", c.Author)
	assert.Equal(t, "P1"+domain.CopySuffix, *c.Name)
	assert.Equal(t, []string{"bob"}, c.WriteAccess)
	require.Len(t, c.LiteratureFiles, 1)
	assert.NotEqual(t, ref.FileID, c.LiteratureFiles[0].FileID)
	assert.Equal(t, []byte("%PDF"), w.blobs.objects[c.LiteratureFiles[0].FileID].Data)

	require.NoError(t, w.plans.Delete(ctx, c.ID, "bob"))
	assert.Contains(t, w.blobs.objects, ref.FileID, "the original file survives deleting the copy")
	assert.NotContains(t, w.blobs.objects, c.LiteratureFiles[0].FileID)
}

func TestPlanService_Delete(t *testing.T) {
	ctx := context.Background()
	w := newWorld(admin("root"), user("alice"), user("bob"))
	a, err := w.plans.Insert(ctx, domain.VEPlan{}, "alice")
	require.NoError(t, err)
	b, err := w.plans.Insert(ctx, domain.VEPlan{}, "alice")
	require.NoError(t, err)

	assert.ErrorIs(t, w.plans.Delete(ctx, a.ID, "bob"), domain.ErrInsufficientPermission)
	require.NoError(t, w.plans.Delete(ctx, a.ID, "alice"))
	require.NoError(t, w.plans.Delete(ctx, b.ID, "root"))
	assert.Empty(t, w.planRepo.byID)
	assert.Empty(t, w.search.docs)
}

func TestPlanService_Search(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"), user("bob"))
	a, err := w.plans.Insert(ctx, domain.VEPlan{}, "alice")
	require.NoError(t, err)
	b, err := w.plans.Insert(ctx, domain.VEPlan{}, "alice")
	require.NoError(t, err)
	hidden, err := w.plans.Insert(ctx, domain.VEPlan{}, "bob")
	require.NoError(t, err)
	w.search.hits = []string{b.ID.Hex(), "garbage", hidden.ID.Hex(), a.ID.Hex()}

	plans, err := w.plans.Search(ctx, "alice", "climate")
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, b.ID, plans[0].ID)
	assert.Equal(t, a.ID, plans[1].ID)
}
