package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/internal/domain/service"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/logger"
)

type CaseUseCase struct {
	ledger   repository.Ledger
	caseRepo repository.CaseRepository
	fileRepo repository.FileMetadataRepository
	storage  service.FileUploadService
	locker   service.Locker
	notifier service.Notifier
	now      func() time.Time
}

func NewCaseUseCase(
	ledger repository.Ledger,
	caseRepo repository.CaseRepository,
	fileRepo repository.FileMetadataRepository,
	storage service.FileUploadService,
	locker service.Locker,
	notifier service.Notifier,
) *CaseUseCase {
	return &CaseUseCase{
		ledger:   ledger,
		caseRepo: caseRepo,
		fileRepo: fileRepo,
		storage:  storage,
		locker:   locker,
		notifier: notifier,
		now:      time.Now,
	}
}

type UpdateMilestoneInput struct {
	Status         string
	AgentNotes     string
	SubmittedFiles []string
}

type UploadDocumentInput struct {
	File           io.Reader
	Filename       string
	ContentType    string
	Size           int64
	Name           string
	MilestoneIndex *int
}

// caseMutation runs fn against a freshly read case inside a ledger
// transaction. fn returns the notices to send once the write committed.
type caseMutation func(c *entity.Case, now time.Time) ([]service.Notice, error)

func (uc *CaseUseCase) mutate(ctx context.Context, actor Actor, caseID, action string, fn caseMutation) (*entity.Case, error) {
	unlock, err := acquire(ctx, uc.locker, "case:"+caseID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		updated *entity.Case
		notices []service.Notice
	)
	err = uc.ledger.RunTransaction(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		now := uc.now()

		c, err := tx.GetCase(caseID)
		if err != nil {
			return err
		}
		notices, err = fn(c, now)
		if err != nil {
			return err
		}
		syncCaseState(c, actor.ID, now)

		if err := tx.UpdateCase(c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		logger.Debug("case %s %s by %s rejected: %v", caseID, action, actor.ID, err)
		return nil, err
	}

	notifyAll(ctx, uc.notifier, notices)
	return updated, nil
}

func milestoneAt(c *entity.Case, index int) (*entity.CaseMilestone, error) {
	if index < 0 || index >= len(c.Milestones) {
		return nil, errors.NotFound("Milestone", nil)
	}
	return &c.Milestones[index], nil
}

// UpdateMilestone lets the agent move a milestone forward and attach work.
// startedAt and completedAt are set on the first transition only.
func (uc *CaseUseCase) UpdateMilestone(ctx context.Context, actor Actor, caseID string, index int, input UpdateMilestoneInput) (*entity.Case, error) {
	if input.Status != entity.MilestoneStatusInProgress && input.Status != entity.MilestoneStatusCompleted {
		return nil, errors.Validation("Status must be in-progress or completed")
	}

	return uc.mutate(ctx, actor, caseID, "update_milestone", func(c *entity.Case, now time.Time) ([]service.Notice, error) {
		if c.AgentID != actor.ID {
			return nil, errors.Forbidden("Only the case agent can update milestones", nil)
		}
		if c.Status != entity.CaseStatusActive {
			return nil, errors.InvalidState(fmt.Sprintf("Milestones cannot be updated while the case is %s", c.Status))
		}
		m, err := milestoneAt(c, index)
		if err != nil {
			return nil, err
		}
		if m.Status == entity.MilestoneStatusApproved {
			return nil, errors.InvalidState("Approved milestones cannot be changed")
		}

		m.Status = input.Status
		if input.Status == entity.MilestoneStatusInProgress && m.StartedAt == nil {
			started := now
			m.StartedAt = &started
		}
		if input.Status == entity.MilestoneStatusCompleted && m.CompletedAt == nil {
			done := now
			m.CompletedAt = &done
		}
		if input.AgentNotes != "" {
			m.AgentNotes = input.AgentNotes
		}
		if len(input.SubmittedFiles) > 0 {
			m.SubmittedFiles = append(m.SubmittedFiles, input.SubmittedFiles...)
		}
		c.AddTimeline(entity.EventMilestoneUpdated, fmt.Sprintf("Milestone %q marked %s", m.Title, m.Status), actor.ID, now)

		notice := service.Notice{
			RecipientID: c.ClientID,
			Event:       entity.EventCaseStatusChanged,
			Title:       "Milestone in progress",
			Message:     fmt.Sprintf("Your agent started work on %q", m.Title),
			Priority:    entity.PriorityNormal,
			Category:    entity.CategoryInfo,
			EntityID:    c.ID,
			Data:        map[string]interface{}{"case_id": c.ID, "milestone_index": index},
		}
		if m.Status == entity.MilestoneStatusCompleted {
			notice.Event = entity.EventMilestoneNeedsApproval
			notice.Title = "Milestone ready for approval"
			notice.Message = fmt.Sprintf("%q is complete and waiting for your approval", m.Title)
			notice.Priority = entity.PriorityHigh
		}
		return []service.Notice{notice}, nil
	})
}

// ApproveMilestone approves a completed milestone and releases the mirrored
// escrow milestone in the same transaction.
func (uc *CaseUseCase) ApproveMilestone(ctx context.Context, actor Actor, caseID string, index int, feedback string) (*entity.Case, error) {
	current, err := uc.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if current.ClientID != actor.ID {
		return nil, errors.Forbidden("Only the case client can approve milestones", nil)
	}

	keys := []string{"case:" + caseID}
	if current.EscrowID != "" {
		keys = []string{"escrow:" + current.EscrowID, "case:" + caseID}
	}
	unlock, err := acquire(ctx, uc.locker, keys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		updated *entity.Case
		notices []service.Notice
	)
	err = uc.ledger.RunTransaction(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		notices = nil
		now := uc.now()

		c, err := tx.GetCase(caseID)
		if err != nil {
			return err
		}
		var e *entity.Escrow
		if c.EscrowID != "" {
			if e, err = tx.GetEscrow(c.EscrowID); err != nil {
				return err
			}
		}

		if c.ClientID != actor.ID {
			return errors.Forbidden("Only the case client can approve milestones", nil)
		}
		if c.Status != entity.CaseStatusActive {
			return errors.InvalidState(fmt.Sprintf("Milestones cannot be approved while the case is %s", c.Status))
		}
		m, err := milestoneAt(c, index)
		if err != nil {
			return err
		}
		if m.Status != entity.MilestoneStatusCompleted {
			return errors.InvalidState(fmt.Sprintf("Only completed milestones can be approved, this one is %s", m.Status))
		}

		var released float64
		if e != nil && m.EscrowMilestoneID != "" {
			_, em := e.Milestone(m.EscrowMilestoneID)
			if em == nil {
				return errors.Internal(fmt.Sprintf("Escrow %s has no milestone %s", e.ID, m.EscrowMilestoneID), nil)
			}
			if em.Status != entity.EscrowMilestoneCompleted {
				if !e.CanRelease() {
					return errors.InvalidState(fmt.Sprintf("Escrow cannot release payment in status %s", e.Status))
				}
				completeMilestone(em, now)
				released = em.Amount
				if e.AllMilestonesCompleted() {
					e.Status = entity.EscrowStatusCompleted
				} else {
					e.Status = entity.EscrowStatusInProgress
				}
				e.AddTimeline(entity.EventMilestoneRelease,
					fmt.Sprintf("Milestone %q released on client approval (%.2f)", em.Description, em.Amount), actor.ID, now)
			} else {
				e = nil
			}
		} else {
			e = nil
		}

		approveMilestone(m, now)
		if feedback = strings.TrimSpace(feedback); feedback != "" {
			m.ClientFeedback = feedback
		}
		c.AddTimeline(entity.EventMilestoneApproved, fmt.Sprintf("Milestone %q approved", m.Title), actor.ID, now)
		syncCaseState(c, actor.ID, now)

		if e != nil {
			if err := tx.UpdateEscrow(e); err != nil {
				return err
			}
		}
		if err := tx.UpdateCase(c); err != nil {
			return err
		}

		if c.Status == entity.CaseStatusCompleted {
			notices = append(notices, service.Notice{
				RecipientID: c.AgentID,
				Event:       entity.EventCaseStatusChanged,
				Title:       "Case completed",
				Message:     fmt.Sprintf("The client approved the final milestone. %q is complete.", c.Title),
				Priority:    entity.PriorityHigh,
				Category:    entity.CategorySuccess,
				EntityID:    c.ID,
				Data:        map[string]interface{}{"case_id": c.ID, "status": c.Status, "amount": released},
			})
		} else {
			notices = append(notices, service.Notice{
				RecipientID: c.AgentID,
				Event:       entity.EventMilestonePaymentRelease,
				Title:       "Milestone approved",
				Message:     fmt.Sprintf("%q was approved and %.2f released", m.Title, released),
				Priority:    entity.PriorityHigh,
				Category:    entity.CategorySuccess,
				EntityID:    c.ID,
				Data:        map[string]interface{}{"case_id": c.ID, "milestone_index": index, "amount": released},
			})
		}

		updated = c
		return nil
	})
	if err != nil {
		logOutcome(current.EscrowID, "approve_milestone", actor.ID, err)
		return nil, err
	}

	notifyAll(ctx, uc.notifier, notices)
	return updated, nil
}

// RejectMilestone sends a completed milestone back to the agent.
func (uc *CaseUseCase) RejectMilestone(ctx context.Context, actor Actor, caseID string, index int, feedback string) (*entity.Case, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, errors.Validation("Feedback is required when rejecting a milestone")
	}

	return uc.mutate(ctx, actor, caseID, "reject_milestone", func(c *entity.Case, now time.Time) ([]service.Notice, error) {
		if c.ClientID != actor.ID {
			return nil, errors.Forbidden("Only the case client can reject milestones", nil)
		}
		if c.Status != entity.CaseStatusActive {
			return nil, errors.InvalidState(fmt.Sprintf("Milestones cannot be rejected while the case is %s", c.Status))
		}
		m, err := milestoneAt(c, index)
		if err != nil {
			return nil, err
		}
		if m.Status != entity.MilestoneStatusCompleted {
			return nil, errors.InvalidState(fmt.Sprintf("Only completed milestones can be rejected, this one is %s", m.Status))
		}

		m.Status = entity.MilestoneStatusRejected
		m.ClientFeedback = feedback
		c.AddTimeline(entity.EventMilestoneRejected, fmt.Sprintf("Milestone %q rejected: %s", m.Title, feedback), actor.ID, now)

		return []service.Notice{{
			RecipientID: c.AgentID,
			Event:       entity.EventMilestoneRejectedNotice,
			Title:       "Milestone needs changes",
			Message:     fmt.Sprintf("The client asked for changes on %q: %s", m.Title, feedback),
			Priority:    entity.PriorityHigh,
			Category:    entity.CategoryWarning,
			EntityID:    c.ID,
			Data:        map[string]interface{}{"case_id": c.ID, "milestone_index": index},
		}}, nil
	})
}

// AddNote replaces the caller's side of the case notes.
func (uc *CaseUseCase) AddNote(ctx context.Context, actor Actor, caseID, note string) (*entity.Case, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, errors.Validation("Note cannot be empty")
	}

	return uc.mutate(ctx, actor, caseID, "add_note", func(c *entity.Case, now time.Time) ([]service.Notice, error) {
		switch actor.ID {
		case c.ClientID:
			c.ClientNotes = note
		case c.AgentID:
			c.AgentNotes = note
		default:
			return nil, errors.Forbidden("Only case parties can add notes", nil)
		}
		c.AddTimeline(entity.EventNoteAdded, "Note updated", actor.ID, now)

		return []service.Notice{{
			RecipientID: c.CounterParty(actor.ID),
			Event:       entity.EventCaseNoteAdded,
			Title:       "New note",
			Message:     "A note was added to " + c.Title,
			Priority:    entity.PriorityLow,
			Category:    entity.CategoryInfo,
			EntityID:    c.ID,
			Data:        map[string]interface{}{"case_id": c.ID},
		}}, nil
	})
}

// UploadDocument stores the file, records its metadata and attaches it to the
// case. The stored object is removed again when the case write fails.
func (uc *CaseUseCase) UploadDocument(ctx context.Context, actor Actor, caseID string, input UploadDocumentInput) (*entity.Case, error) {
	if uc.storage == nil {
		return nil, errors.Internal("File storage is not configured", nil)
	}
	if input.File == nil || input.Filename == "" {
		return nil, errors.Validation("File is required")
	}

	current, err := uc.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !current.IsParty(actor.ID) {
		return nil, errors.Forbidden("Only case parties can upload documents", nil)
	}
	if input.MilestoneIndex != nil {
		if _, err := milestoneAt(current, *input.MilestoneIndex); err != nil {
			return nil, err
		}
	}

	uploaded, err := uc.storage.UploadFile(ctx, input.File, input.Filename, input.ContentType, "cases/"+caseID)
	if err != nil {
		return nil, errors.Internal("Failed to upload file", err)
	}
	size := input.Size
	if uploaded.Size > 0 {
		size = uploaded.Size
	}

	metadata := &entity.FileMetadata{
		ID:         uuid.New().String(),
		URL:        uploaded.URL,
		ObjectName: uploaded.ObjectName,
		EntityType: entity.FileEntityCase,
		EntityID:   caseID,
		UploadedBy: actor.ID,
		Filename:   input.Filename,
		FileType:   input.ContentType,
		FileSize:   size,
	}
	if err := uc.fileRepo.Create(ctx, metadata); err != nil {
		uc.discardUpload(ctx, uploaded.URL, "")
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = input.Filename
	}

	updated, err := uc.mutate(ctx, actor, caseID, "upload_document", func(c *entity.Case, now time.Time) ([]service.Notice, error) {
		if !c.IsParty(actor.ID) {
			return nil, errors.Forbidden("Only case parties can upload documents", nil)
		}

		doc := entity.CaseDocument{
			ID:         metadata.ID,
			Name:       name,
			URL:        uploaded.URL,
			Type:       input.ContentType,
			Size:       size,
			UploadedBy: actor.ID,
			UploadedAt: now,
		}
		if input.MilestoneIndex != nil {
			m, err := milestoneAt(c, *input.MilestoneIndex)
			if err != nil {
				return nil, err
			}
			idx := *input.MilestoneIndex
			doc.MilestoneIndex = &idx
			m.SubmittedFiles = append(m.SubmittedFiles, uploaded.URL)
		}
		c.Documents = append(c.Documents, doc)
		c.AddTimeline(entity.EventDocumentUploaded, fmt.Sprintf("Document %q uploaded", name), actor.ID, now)

		return []service.Notice{{
			RecipientID: c.CounterParty(actor.ID),
			Event:       entity.EventDocumentNew,
			Title:       "New document",
			Message:     fmt.Sprintf("%q was uploaded to %s", name, c.Title),
			Priority:    entity.PriorityNormal,
			Category:    entity.CategoryInfo,
			EntityID:    c.ID,
			Data:        map[string]interface{}{"case_id": c.ID, "document_id": doc.ID, "url": doc.URL},
		}}, nil
	})
	if err != nil {
		uc.discardUpload(ctx, uploaded.URL, metadata.ID)
		return nil, err
	}
	return updated, nil
}

func (uc *CaseUseCase) discardUpload(ctx context.Context, url, metadataID string) {
	if err := uc.storage.DeleteFile(ctx, url); err != nil {
		logger.Error("Failed to delete orphaned upload %s: %v", url, err)
	}
	if metadataID == "" {
		return
	}
	if err := uc.fileRepo.Delete(ctx, metadataID); err != nil {
		logger.Error("Failed to delete file metadata %s: %v", metadataID, err)
	}
}

// SetStatus is the admin override for a case: put it on hold, resume it or
// cancel it. Cancelling requires the escrow to be settled first.
func (uc *CaseUseCase) SetStatus(ctx context.Context, actor Actor, caseID, status, reason string) (*entity.Case, error) {
	if !actor.IsAdmin() {
		return nil, errors.Forbidden("Only admins can change case status", nil)
	}
	switch status {
	case entity.CaseStatusActive, entity.CaseStatusOnHold, entity.CaseStatusCancelled:
	default:
		return nil, errors.Validation("Status must be one of active, on-hold, cancelled")
	}

	unlock, err := acquire(ctx, uc.locker, "case:"+caseID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		updated *entity.Case
		notices []service.Notice
	)
	err = uc.ledger.RunTransaction(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		now := uc.now()

		c, err := tx.GetCase(caseID)
		if err != nil {
			return err
		}
		if status == entity.CaseStatusCancelled && c.EscrowID != "" {
			e, err := tx.GetEscrow(c.EscrowID)
			if err != nil && !errors.Is(err, errors.CodeNotFound) {
				return err
			}
			if e != nil && !e.IsTerminal() {
				return errors.InvalidState("Refund or cancel the escrow before cancelling the case")
			}
		}

		if !caseTransitionAllowed(c.Status, status) {
			return errors.InvalidState(fmt.Sprintf("Case cannot move from %s to %s", c.Status, status))
		}

		previous := c.Status
		c.Status = status
		c.AddTimeline(entity.EventCaseStatusUpdated,
			describeRelease(fmt.Sprintf("Status changed from %s to %s", previous, status), reason), actor.ID, now)
		syncCaseState(c, actor.ID, now)

		if err := tx.UpdateCase(c); err != nil {
			return err
		}

		notices = caseStatusNotices(c, "Case status changed", fmt.Sprintf("%s is now %s", c.Title, c.Status))
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	notifyAll(ctx, uc.notifier, notices)
	return updated, nil
}

func caseTransitionAllowed(from, to string) bool {
	switch from {
	case entity.CaseStatusActive:
		return to == entity.CaseStatusOnHold || to == entity.CaseStatusCancelled
	case entity.CaseStatusOnHold:
		return to == entity.CaseStatusActive || to == entity.CaseStatusCancelled
	case entity.CaseStatusDisputed:
		return to == entity.CaseStatusCancelled
	}
	return false
}

func (uc *CaseUseCase) Get(ctx context.Context, actor Actor, caseID string) (*entity.Case, error) {
	c, err := uc.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !c.IsParty(actor.ID) && !actor.IsAdmin() {
		return nil, errors.Forbidden("You don't have permission to view this case", nil)
	}
	return c, nil
}

func (uc *CaseUseCase) ListMine(ctx context.Context, actor Actor, status string, limit, offset int) ([]*entity.Case, int64, error) {
	return uc.caseRepo.ListByUser(ctx, actor.ID, actor.Role, status, limit, offset)
}
