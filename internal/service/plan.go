package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository"
)

var (
	ErrPlanNotFound       = repository.ErrPlanNotFound
	ErrPlanExists         = repository.ErrPlanExists
	ErrInvitationNotFound = repository.ErrInvitationNotFound
	ErrNoReadAccess       = domain.ErrNoReadAccess
	ErrNoWriteAccess      = domain.ErrNoWriteAccess
)

const searchLimit = 100

type PlanRepository interface {
	Create(ctx context.Context, plan domain.VEPlan) (domain.VEPlan, error)
	FindByID(ctx context.Context, id domain.ID) (domain.VEPlan, error)
	FindByIDs(ctx context.Context, ids []domain.ID) ([]domain.VEPlan, error)
	List(ctx context.Context, f repository.PlanFilter) ([]domain.VEPlan, error)
	Replace(ctx context.Context, plan domain.VEPlan) error
	UpdateFields(ctx context.Context, id domain.ID, fields map[string]any, lastModified time.Time) error
	GrantAccess(ctx context.Context, id domain.ID, usernames []string, write bool) error
	RevokeAccess(ctx context.Context, id domain.ID, usernames []string, read bool) error
	Delete(ctx context.Context, id domain.ID) error
}

type InvitationRepository interface {
	Create(ctx context.Context, inv domain.Invitation) (domain.Invitation, error)
	FindByID(ctx context.Context, id domain.ID) (domain.Invitation, error)
	SetReply(ctx context.Context, id domain.ID, accepted bool) error
}

// ProfileDirectory resolves profiles by name.
type ProfileDirectory interface {
	FindByUsername(ctx context.Context, username string) (domain.Profile, error)
	FindByUsernames(ctx context.Context, usernames []string) ([]domain.Profile, error)
}

type PlanService struct {
	repo        PlanRepository
	invitations InvitationRepository
	profiles    ProfileDirectory
	blobs       ObjectStore
	search      SearchIndex
	notifier    Notifier
	tasks       TaskRunner
	now         func() time.Time
}

func NewPlanService(
	repo PlanRepository,
	invitations InvitationRepository,
	profiles ProfileDirectory,
	blobs ObjectStore,
	search SearchIndex,
	notifier Notifier,
	tasks TaskRunner,
) *PlanService {
	return &PlanService{
		repo:        repo,
		invitations: invitations,
		profiles:    profiles,
		blobs:       blobs,
		search:      search,
		notifier:    notifier,
		tasks:       tasks,
		now:         time.Now,
	}
}

func (s *PlanService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *PlanService) find(ctx context.Context, id domain.ID) (domain.VEPlan, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.VEPlan{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	return plan, nil
}

func (s *PlanService) readable(ctx context.Context, id domain.ID, username string) (domain.VEPlan, error) {
	plan, err := s.find(ctx, id)
	if err != nil {
		return domain.VEPlan{}, err
	}
	if !plan.CanRead(username) {
		return domain.VEPlan{}, ErrNoReadAccess
	}

	return plan, nil
}

func (s *PlanService) writable(ctx context.Context, id domain.ID, username string) (domain.VEPlan, error) {
	plan, err := s.find(ctx, id)
	if err != nil {
		return domain.VEPlan{}, err
	}
	if !plan.CanWrite(username) {
		return domain.VEPlan{}, ErrNoWriteAccess
	}

	return plan, nil
}

func (s *PlanService) Get(ctx context.Context, id domain.ID, username string) (domain.VEPlan, error) {
	return s.readable(ctx, id, username)
}

// Lookup returns a plan without access checks. Moderation only.
func (s *PlanService) Lookup(ctx context.Context, id domain.ID) (domain.VEPlan, error) {
	return s.find(ctx, id)
}

// GetBulk returns the plans among ids that exist and that username may read.
func (s *PlanService) GetBulk(ctx context.Context, ids []domain.ID, username string) ([]domain.VEPlan, error) {
	plans, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByIDs -> %w", err)
	}

	return readableOnly(plans, username), nil
}

func readableOnly(plans []domain.VEPlan, username string) []domain.VEPlan {
	out := make([]domain.VEPlan, 0, len(plans))
	for _, p := range plans {
		if p.CanRead(username) {
			out = append(out, p)
		}
	}
	return out
}

func (s *PlanService) List(ctx context.Context, f repository.PlanFilter) ([]domain.VEPlan, error) {
	plans, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("s.repo.List -> %w", err)
	}

	return plans, nil
}

// Search runs a full text query against the search index and returns the readable hits in rank
// order.
func (s *PlanService) Search(ctx context.Context, username, text string) ([]domain.VEPlan, error) {
	hits, err := s.search.Query(ctx, plansCollection, text, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("s.search.Query -> %w", err)
	}
	ids := make([]domain.ID, 0, len(hits))
	for _, h := range hits {
		if id, err := domain.ParseID(h); err == nil {
			ids = append(ids, id)
		}
	}
	plans, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByIDs -> %w", err)
	}
	byID := make(map[domain.ID]domain.VEPlan, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
	}
	ranked := make([]domain.VEPlan, 0, len(plans))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ranked = append(ranked, p)
		}
	}

	return readableOnly(ranked, username), nil
}

// Insert stores plan as a new plan of author.
func (s *PlanService) Insert(ctx context.Context, plan domain.VEPlan, author string) (domain.VEPlan, error) {
	now := s.timestamp()
	plan.Author = author
	plan.ReadAccess = appendUnique(plan.ReadAccess, author)
	plan.WriteAccess = appendUnique(plan.WriteAccess, author)
	plan.CreationTimestamp = &now
	plan.LastModified = &now

	plan, err := domain.NewVEPlan(plan)
	if err != nil {
		return domain.VEPlan{}, err
	}
	created, err := s.repo.Create(ctx, plan)
	if err != nil {
		return domain.VEPlan{}, fmt.Errorf("s.repo.Create -> %w", err)
	}
	if err := s.search.OnInsert(ctx, created.ID.Hex(), created.SearchProjection(), plansCollection); err != nil {
		zap.L().Warn("search index insert failed", zap.String("plan", created.ID.Hex()), zap.Error(err))
	}

	return created, nil
}

// UpdateFull overwrites every editable field of the stored plan with the ones of plan. With upsert
// an unknown id is inserted as a plan of username.
func (s *PlanService) UpdateFull(ctx context.Context, plan domain.VEPlan, upsert bool, username string) (domain.VEPlan, error) {
	stored, err := s.repo.FindByID(ctx, plan.ID)
	if err != nil {
		if upsert && errors.Is(err, domain.ErrNotFound) {
			return s.Insert(ctx, plan, username)
		}
		return domain.VEPlan{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}
	if !stored.CanWrite(username) {
		return domain.VEPlan{}, ErrNoWriteAccess
	}

	if err := stored.ReplaceEditable(plan); err != nil {
		return domain.VEPlan{}, err
	}
	now := s.timestamp()
	stored.LastModified = &now
	if err := s.repo.Replace(ctx, stored); err != nil {
		return domain.VEPlan{}, fmt.Errorf("s.repo.Replace -> %w", err)
	}
	s.reindex(ctx, stored)
	if err := s.addPartners(ctx, stored, username); err != nil {
		return domain.VEPlan{}, err
	}

	return stored, nil
}

// UpdateField sets one editable attribute. Setting partners grants them write access and notifies
// the ones added for the first time.
func (s *PlanService) UpdateField(ctx context.Context, id domain.ID, field string, value any, upsert bool, username string) (domain.VEPlan, error) {
	if !domain.IsEditableField(field) {
		return domain.VEPlan{}, &domain.FieldError{Kind: domain.ErrUnknownField, Field: field}
	}

	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if !upsert || !errors.Is(err, domain.ErrNotFound) {
			return domain.VEPlan{}, fmt.Errorf("s.repo.FindByID -> %w", err)
		}
		fresh := domain.VEPlan{ID: id, Author: username}
		if _, err := fresh.SetField(field, value); err != nil {
			return domain.VEPlan{}, err
		}
		created, err := s.Insert(ctx, fresh, username)
		if err != nil {
			return domain.VEPlan{}, err
		}
		if field == "partners" {
			if err := s.addPartners(ctx, created, username); err != nil {
				return domain.VEPlan{}, err
			}
		}
		return created, nil
	}
	if !plan.CanWrite(username) {
		return domain.VEPlan{}, ErrNoWriteAccess
	}

	changed, err := plan.SetField(field, value)
	if err != nil {
		return domain.VEPlan{}, err
	}
	now := s.timestamp()
	if err := s.repo.UpdateFields(ctx, id, plan.Fields(changed...), now); err != nil {
		return domain.VEPlan{}, fmt.Errorf("s.repo.UpdateFields -> %w", err)
	}
	plan.LastModified = &now

	if field == "partners" {
		if err := s.addPartners(ctx, plan, username); err != nil {
			return domain.VEPlan{}, err
		}
	}
	if field == "name" || field == "topics" || field == "abstract" {
		s.reindex(ctx, plan)
	}

	return plan, nil
}

// addPartners grants write access to the partners of plan that lack it and are known users, then
// queues their notification. The grant stands even when a notification fails.
func (s *PlanService) addPartners(ctx context.Context, plan domain.VEPlan, actor string) error {
	var delta []string
	for _, p := range plan.Partners {
		if p != plan.Author && !containsUser(plan.WriteAccess, p) {
			delta = appendUnique(delta, p)
		}
	}
	if len(delta) == 0 {
		return nil
	}
	known, err := s.profiles.FindByUsernames(ctx, delta)
	if err != nil {
		return fmt.Errorf("s.profiles.FindByUsernames -> %w", err)
	}
	survivors := make([]string, 0, len(known))
	for _, p := range known {
		survivors = append(survivors, p.Username)
	}
	if len(survivors) == 0 {
		return nil
	}
	if err := s.repo.GrantAccess(ctx, plan.ID, survivors, true); err != nil {
		return fmt.Errorf("s.repo.GrantAccess -> %w", err)
	}

	payload := map[string]any{"from": actor, "plan_id": plan.ID.Hex(), "plan_name": planName(plan)}
	for _, user := range survivors {
		user := user
		s.tasks.Submit("plan_added_as_partner", func(ctx context.Context) error {
			return s.notifier.Send(ctx, user, domain.NotifPlanAddedAsPartner, payload)
		})
	}

	return nil
}

func (s *PlanService) reindex(ctx context.Context, plan domain.VEPlan) {
	if err := s.search.OnUpdate(ctx, plan.ID.Hex(), plansCollection, plan.SearchProjection()); err != nil {
		zap.L().Warn("search index update failed", zap.String("plan", plan.ID.Hex()), zap.Error(err))
	}
}

func (s *PlanService) AppendStep(ctx context.Context, id domain.ID, step domain.Step, username string) (domain.VEPlan, error) {
	plan, err := s.writable(ctx, id, username)
	if err != nil {
		return domain.VEPlan{}, err
	}
	if err := plan.AppendStep(step); err != nil {
		return domain.VEPlan{}, err
	}
	now := s.timestamp()
	fields := plan.Fields("steps", "timestamp_from", "timestamp_to", "duration", "workload")
	if err := s.repo.UpdateFields(ctx, id, fields, now); err != nil {
		return domain.VEPlan{}, fmt.Errorf("s.repo.UpdateFields -> %w", err)
	}
	plan.LastModified = &now

	return plan, nil
}

// PutEvaluationFile stores upload as the evaluation file of the plan, replacing the previous one.
func (s *PlanService) PutEvaluationFile(ctx context.Context, id domain.ID, username string, upload Upload) (domain.FileRef, error) {
	plan, err := s.writable(ctx, id, username)
	if err != nil {
		return domain.FileRef{}, err
	}

	blobID, err := s.blobs.Put(ctx, upload.Data, upload.FileName, upload.ContentType, username)
	if err != nil {
		return domain.FileRef{}, fmt.Errorf("s.blobs.Put -> %w", err)
	}
	ref := domain.FileRef{FileID: blobID, FileName: upload.FileName}
	if err := s.repo.UpdateFields(ctx, id, map[string]any{"evaluation_file": ref.ToMap()}, s.timestamp()); err != nil {
		discardBlobs(s.blobs, blobID)
		return domain.FileRef{}, fmt.Errorf("s.repo.UpdateFields -> %w", err)
	}
	if plan.EvaluationFile != nil {
		if err := deleteBlobs(ctx, s.blobs, plan.EvaluationFile.FileID); err != nil {
			zap.L().Warn("replaced evaluation file not deleted", zap.String("plan", id.Hex()), zap.Error(err))
		}
	}

	return ref, nil
}

func (s *PlanService) RemoveEvaluationFile(ctx context.Context, id domain.ID, username string) error {
	plan, err := s.writable(ctx, id, username)
	if err != nil {
		return err
	}
	if plan.EvaluationFile == nil {
		return fmt.Errorf("evaluation file %w", domain.ErrNotFound)
	}
	if err := s.repo.UpdateFields(ctx, id, map[string]any{"evaluation_file": nil}, s.timestamp()); err != nil {
		return fmt.Errorf("s.repo.UpdateFields -> %w", err)
	}
	if err := deleteBlobs(ctx, s.blobs, plan.EvaluationFile.FileID); err != nil {
		return fmt.Errorf("deleteBlobs -> %w", err)
	}

	return nil
}

// PutLiteratureFile adds upload to the literature files of the plan.
func (s *PlanService) PutLiteratureFile(ctx context.Context, id domain.ID, username string, upload Upload) (domain.FileRef, error) {
	plan, err := s.writable(ctx, id, username)
	if err != nil {
		return domain.FileRef{}, err
	}
	if len(plan.LiteratureFiles) >= domain.MaxLiteratureFiles {
		return domain.FileRef{}, domain.ErrMaxFilesExceeded
	}

	blobID, err := s.blobs.Put(ctx, upload.Data, upload.FileName, upload.ContentType, username)
	if err != nil {
		return domain.FileRef{}, fmt.Errorf("s.blobs.Put -> %w", err)
	}
	ref := domain.FileRef{FileID: blobID, FileName: upload.FileName}
	plan.LiteratureFiles = append(plan.LiteratureFiles, ref)
	if err := s.repo.UpdateFields(ctx, id, plan.Fields("literature_files"), s.timestamp()); err != nil {
		discardBlobs(s.blobs, blobID)
		return domain.FileRef{}, fmt.Errorf("s.repo.UpdateFields -> %w", err)
	}

	return ref, nil
}

func (s *PlanService) RemoveLiteratureFile(ctx context.Context, id domain.ID, username string, fileID domain.ID) error {
	plan, err := s.writable(ctx, id, username)
	if err != nil {
		return err
	}
	kept := make([]domain.FileRef, 0, len(plan.LiteratureFiles))
	for _, f := range plan.LiteratureFiles {
		if f.FileID != fileID {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(plan.LiteratureFiles) {
		return fmt.Errorf("literature file %w", domain.ErrNotFound)
	}
	plan.LiteratureFiles = kept
	if err := s.repo.UpdateFields(ctx, id, plan.Fields("literature_files"), s.timestamp()); err != nil {
		return fmt.Errorf("s.repo.UpdateFields -> %w", err)
	}
	if err := deleteBlobs(ctx, s.blobs, fileID); err != nil {
		return fmt.Errorf("deleteBlobs -> %w", err)
	}

	return nil
}

// GetFile returns a blob referenced by the plan.
func (s *PlanService) GetFile(ctx context.Context, id, fileID domain.ID, username string) (Object, error) {
	plan, err := s.readable(ctx, id, username)
	if err != nil {
		return Object{}, err
	}
	if !containsID(planBlobs(plan), fileID) {
		return Object{}, fmt.Errorf("plan file %w", domain.ErrNotFound)
	}
	obj, err := s.blobs.Get(ctx, fileID)
	if err != nil {
		return Object{}, fmt.Errorf("s.blobs.Get -> %w", err)
	}

	return obj, nil
}

// planBlobs lists every blob the plan references.
func planBlobs(p domain.VEPlan) []domain.ID {
	var ids []domain.ID
	if p.EvaluationFile != nil {
		ids = append(ids, p.EvaluationFile.FileID)
	}
	for _, f := range p.LiteratureFiles {
		ids = append(ids, f.FileID)
	}
	for _, step := range p.Steps {
		ids = append(ids, step.Attachments...)
	}
	return ids
}

// CopyPlan duplicates a readable plan into a new plan of username, blobs included.
func (s *PlanService) CopyPlan(ctx context.Context, id domain.ID, username string) (domain.VEPlan, error) {
	plan, err := s.readable(ctx, id, username)
	if err != nil {
		return domain.VEPlan{}, err
	}
	c, err := plan.Copy(username)
	if err != nil {
		return domain.VEPlan{}, err
	}

	var copied []domain.ID
	dup := func(src domain.ID) (domain.ID, error) {
		obj, err := s.blobs.Get(ctx, src)
		if err != nil {
			return domain.NilID, fmt.Errorf("s.blobs.Get -> %w", err)
		}
		fresh, err := s.blobs.Put(ctx, obj.Data, obj.FileName, obj.ContentType, username)
		if err != nil {
			return domain.NilID, fmt.Errorf("s.blobs.Put -> %w", err)
		}
		copied = append(copied, fresh)
		return fresh, nil
	}
	fail := func(err error) (domain.VEPlan, error) {
		discardBlobs(s.blobs, copied...)
		return domain.VEPlan{}, err
	}

	if c.EvaluationFile != nil {
		fresh, err := dup(c.EvaluationFile.FileID)
		if err != nil {
			return fail(err)
		}
		c.EvaluationFile = &domain.FileRef{FileID: fresh, FileName: c.EvaluationFile.FileName}
	}
	for i, f := range c.LiteratureFiles {
		fresh, err := dup(f.FileID)
		if err != nil {
			return fail(err)
		}
		c.LiteratureFiles[i].FileID = fresh
	}
	for i := range c.Steps {
		for j, a := range c.Steps[i].Attachments {
			fresh, err := dup(a)
			if err != nil {
				return fail(err)
			}
			c.Steps[i].Attachments[j] = fresh
		}
	}

	created, err := s.Insert(ctx, c, username)
	if err != nil {
		return fail(err)
	}

	return created, nil
}

func (s *PlanService) owned(ctx context.Context, id domain.ID, username string) (domain.VEPlan, error) {
	plan, err := s.find(ctx, id)
	if err != nil {
		return domain.VEPlan{}, err
	}
	if plan.Author != username {
		return domain.VEPlan{}, domain.ErrInsufficientPermission
	}

	return plan, nil
}

// SetReadPermissions lets usernames read the plan of actor.
func (s *PlanService) SetReadPermissions(ctx context.Context, id domain.ID, actor string, usernames []string) error {
	return s.grant(ctx, id, actor, usernames, false)
}

// SetWritePermissions lets usernames read and write the plan of actor.
func (s *PlanService) SetWritePermissions(ctx context.Context, id domain.ID, actor string, usernames []string) error {
	return s.grant(ctx, id, actor, usernames, true)
}

func (s *PlanService) grant(ctx context.Context, id domain.ID, actor string, usernames []string, write bool) error {
	plan, err := s.owned(ctx, id, actor)
	if err != nil {
		return err
	}
	if err := s.repo.GrantAccess(ctx, id, usernames, write); err != nil {
		return fmt.Errorf("s.repo.GrantAccess -> %w", err)
	}

	have := plan.ReadAccess
	if write {
		have = plan.WriteAccess
	}
	payload := map[string]any{"from": actor, "plan_id": id.Hex(), "plan_name": planName(plan), "write": write}
	for _, u := range usernames {
		if u == actor || containsUser(have, u) {
			continue
		}
		if err := s.notifier.Send(ctx, u, domain.NotifPlanAccessGranted, payload); err != nil {
			zap.L().Warn("access notification failed", zap.String("to", u), zap.Error(err))
		}
	}

	return nil
}

// RevokeReadPermissions removes read and therefore write access.
func (s *PlanService) RevokeReadPermissions(ctx context.Context, id domain.ID, actor string, usernames []string) error {
	return s.revoke(ctx, id, actor, usernames, true)
}

func (s *PlanService) RevokeWritePermissions(ctx context.Context, id domain.ID, actor string, usernames []string) error {
	return s.revoke(ctx, id, actor, usernames, false)
}

func (s *PlanService) revoke(ctx context.Context, id domain.ID, actor string, usernames []string, read bool) error {
	if _, err := s.owned(ctx, id, actor); err != nil {
		return err
	}
	targets := make([]string, 0, len(usernames))
	for _, u := range usernames {
		if u != actor {
			targets = append(targets, u)
		}
	}
	if err := s.repo.RevokeAccess(ctx, id, targets, read); err != nil {
		return fmt.Errorf("s.repo.RevokeAccess -> %w", err)
	}

	return nil
}

// Delete removes the plan with its files and search entry. Allowed to the author and platform
// admins.
func (s *PlanService) Delete(ctx context.Context, id domain.ID, username string) error {
	plan, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if plan.Author != username {
		actor, err := s.profiles.FindByUsername(ctx, username)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("s.profiles.FindByUsername -> %w", err)
		}
		if actor.Role != domain.RoleAdmin {
			return domain.ErrInsufficientPermission
		}
	}

	return s.remove(ctx, plan)
}

func (s *PlanService) remove(ctx context.Context, plan domain.VEPlan) error {
	if err := s.repo.Delete(ctx, plan.ID); err != nil {
		return fmt.Errorf("s.repo.Delete -> %w", err)
	}
	if err := deleteBlobs(ctx, s.blobs, planBlobs(plan)...); err != nil {
		zap.L().Warn("plan files not deleted", zap.String("plan", plan.ID.Hex()), zap.Error(err))
	}
	if err := s.search.OnDelete(ctx, plan.ID.Hex(), plansCollection); err != nil {
		zap.L().Warn("search index delete failed", zap.String("plan", plan.ID.Hex()), zap.Error(err))
	}

	return nil
}

// InsertInvitation invites recipient to the plan of inv. The sender needs write access to the
// plan, the recipient gains read access right away.
func (s *PlanService) InsertInvitation(ctx context.Context, inv domain.Invitation, sender string) (domain.ID, error) {
	inv.ID = domain.NewID()
	inv.Sender = sender
	inv.Accepted = nil

	payload := map[string]any{"invitation_id": inv.ID.Hex(), "from": sender, "message": inv.Message}
	if inv.PlanID != nil {
		plan, err := s.writable(ctx, *inv.PlanID, sender)
		if err != nil {
			return domain.NilID, err
		}
		if err := s.repo.GrantAccess(ctx, plan.ID, []string{inv.Recipient}, false); err != nil {
			return domain.NilID, fmt.Errorf("s.repo.GrantAccess -> %w", err)
		}
		payload["plan_id"] = plan.ID.Hex()
		payload["plan_name"] = planName(plan)
	}

	created, err := s.invitations.Create(ctx, inv)
	if err != nil {
		return domain.NilID, fmt.Errorf("s.invitations.Create -> %w", err)
	}
	if err := s.notifier.Send(ctx, inv.Recipient, domain.NotifVEInvitation, payload); err != nil {
		zap.L().Warn("invitation notification failed", zap.String("to", inv.Recipient), zap.Error(err))
	}

	return created.ID, nil
}

// GetInvitation returns an invitation to its sender or recipient.
func (s *PlanService) GetInvitation(ctx context.Context, id domain.ID, username string) (domain.Invitation, error) {
	inv, err := s.invitations.FindByID(ctx, id)
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("s.invitations.FindByID -> %w", err)
	}
	if inv.Sender != username && inv.Recipient != username {
		return domain.Invitation{}, domain.ErrInsufficientPermission
	}

	return inv, nil
}

// SetInvitationReply records the answer of the recipient. Accepting grants write access to the
// plan; declining withdraws the read access the invitation granted. Replying twice is a no-op.
func (s *PlanService) SetInvitationReply(ctx context.Context, id domain.ID, username string, accepted bool) error {
	inv, err := s.invitations.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("s.invitations.FindByID -> %w", err)
	}
	if inv.Recipient != username {
		return domain.ErrInsufficientPermission
	}
	if inv.Replied() {
		return domain.ErrNotModified
	}
	if err := s.invitations.SetReply(ctx, id, accepted); err != nil {
		return fmt.Errorf("s.invitations.SetReply -> %w", err)
	}

	payload := map[string]any{"invitation_id": id.Hex(), "from": username, "accepted": accepted}
	if inv.PlanID != nil {
		plan, err := s.find(ctx, *inv.PlanID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return err
		case accepted:
			if err := s.repo.GrantAccess(ctx, plan.ID, []string{username}, true); err != nil {
				return fmt.Errorf("s.repo.GrantAccess -> %w", err)
			}
		case plan.Author != username && !containsUser(plan.Partners, username):
			if err := s.repo.RevokeAccess(ctx, plan.ID, []string{username}, true); err != nil {
				return fmt.Errorf("s.repo.RevokeAccess -> %w", err)
			}
		}
		if err == nil {
			payload["plan_id"] = plan.ID.Hex()
			payload["plan_name"] = planName(plan)
		}
	}
	if err := s.notifier.Send(ctx, inv.Sender, domain.NotifVEInvitationReply, payload); err != nil {
		zap.L().Warn("invitation reply notification failed", zap.String("to", inv.Sender), zap.Error(err))
	}

	return nil
}

func planName(p domain.VEPlan) string {
	if p.Name == nil {
		return ""
	}
	return *p.Name
}

func containsUser(list []string, user string) bool {
	for _, u := range list {
		if u == user {
			return true
		}
	}
	return false
}

func containsID(list []domain.ID, id domain.ID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func appendUnique(list []string, user string) []string {
	if containsUser(list, user) {
		return list
	}
	return append(list, user)
}
