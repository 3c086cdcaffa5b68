package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fieldsync/internal/draft"
	"fieldsync/internal/logging"
	"fieldsync/internal/media"
	"fieldsync/internal/store"
	"fieldsync/internal/submission"
)

// Session ties an assignment, its form template, and the inspector's draft
// together for the inspection workflow.
type Session struct {
	Assignment *store.Assignment
	Template   *store.Template
	Draft      *store.Draft
}

// MediaRef is the per-item reference embedded in a finalized payload; the
// server resolves it against uploads carrying the same idempotency key.
type MediaRef struct {
	ItemID  string `json:"item_id"`
	SlotID  string `json:"slot_id"`
	Caption string `json:"caption,omitempty"`
}

// Payload is the finalized inspection document queued for submission.
type Payload struct {
	AssignmentID string          `json:"assignment_id"`
	Answers      json.RawMessage `json:"answers"`
	Media        []MediaRef      `json:"media"`
	FinalizedAt  time.Time       `json:"finalized_at"`
}

// Service exposes the inspection workflow on top of the local store and
// queues.
type Service struct {
	store       *store.Store
	drafts      *draft.Autosave
	media       *media.Queue
	submissions *submission.Queue
	logger      *slog.Logger
}

func NewService(st *store.Store, drafts *draft.Autosave, mediaQueue *media.Queue, submissionQueue *submission.Queue, logger *slog.Logger) *Service {
	return &Service{
		store:       st,
		drafts:      drafts,
		media:       mediaQueue,
		submissions: submissionQueue,
		logger:      logging.NewComponentLogger(logger, "forms"),
	}
}

// Open loads everything needed to resume an inspection. A missing template is
// tolerated (the assignment may predate a template pull); a missing draft
// means a fresh form.
func (s *Service) Open(ctx context.Context, assignmentID string) (*Session, error) {
	assignment, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, fmt.Errorf("assignment %s not found", assignmentID)
	}

	session := &Session{Assignment: assignment}
	if assignment.TemplateID != "" {
		template, err := s.store.GetTemplate(ctx, assignment.TemplateID)
		if err != nil {
			return nil, err
		}
		session.Template = template
	}

	draftRecord, err := s.drafts.Load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	session.Draft = draftRecord

	if assignment.Status == store.AssignmentScheduled {
		assignment.Status = store.AssignmentInProgress
		if err := s.store.SaveAssignment(ctx, assignment); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// Finalize freezes the answers into a queued submission. The draft is written
// one last time so local state and the queued payload agree, every media item
// captured for the assignment is referenced by its stable id, and the
// assignment flips to completed. Finalizing again before the first send
// replaces the queued entry.
func (s *Service) Finalize(ctx context.Context, assignmentID string, answers json.RawMessage) error {
	if len(answers) == 0 {
		return errors.New("answers are required")
	}
	assignment, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if assignment == nil {
		return fmt.Errorf("assignment %s not found", assignmentID)
	}

	if err := s.drafts.Save(ctx, assignmentID, answers); err != nil {
		return err
	}

	items, err := s.store.MediaByAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	refs := make([]MediaRef, 0, len(items))
	for _, item := range items {
		refs = append(refs, MediaRef{
			ItemID:  item.ID,
			SlotID:  item.SlotID,
			Caption: item.Caption,
		})
	}

	payload := Payload{
		AssignmentID: assignmentID,
		Answers:      answers,
		Media:        refs,
		FinalizedAt:  time.Now().UTC(),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode submission payload: %w", err)
	}
	if err := s.submissions.Enqueue(ctx, assignmentID, encoded); err != nil {
		return err
	}

	assignment.Status = store.AssignmentCompleted
	if err := s.store.SaveAssignment(ctx, assignment); err != nil {
		return err
	}

	s.logger.Info("inspection finalized",
		logging.String(logging.FieldAssignmentID, assignmentID),
		logging.Int("media_refs", len(refs)),
	)
	return nil
}

// SeedAssignment caches an assignment and its template directly, so a form
// entered from a deep link (or a test) can open without waiting for a pull.
// The template is optional and never downgrades a newer cached version.
func (s *Service) SeedAssignment(ctx context.Context, assignment *store.Assignment, template *store.Template) error {
	if assignment == nil {
		return errors.New("assignment is required")
	}
	if template != nil {
		if err := s.store.SaveTemplate(ctx, template); err != nil {
			return err
		}
	}
	return s.store.SaveAssignment(ctx, assignment)
}

// AttachMedia captures evidence for an assignment's form slot.
func (s *Service) AttachMedia(ctx context.Context, assignmentID, slotID string, content []byte, mimeType, caption string) (*store.MediaItem, error) {
	assignment, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, fmt.Errorf("assignment %s not found", assignmentID)
	}
	return s.media.Enqueue(ctx, assignmentID, slotID, content, mimeType, caption)
}

// Evict removes all local state for an assignment after its submission has
// been acknowledged. Outstanding work blocks eviction; nothing unsent is ever
// discarded.
func (s *Service) Evict(ctx context.Context, assignmentID string) error {
	entry, err := s.submissions.Get(ctx, assignmentID)
	if err != nil {
		return err
	}
	if entry != nil {
		return fmt.Errorf("assignment %s has an unsent submission", assignmentID)
	}
	outstanding, err := s.media.Outstanding(ctx, assignmentID)
	if err != nil {
		return err
	}
	if outstanding {
		return fmt.Errorf("assignment %s has media awaiting upload", assignmentID)
	}

	if _, err := s.store.DeleteDraft(ctx, assignmentID); err != nil {
		return err
	}
	if _, err := s.store.DeleteMediaByAssignment(ctx, assignmentID); err != nil {
		return err
	}
	removed, err := s.store.DeleteAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("assignment %s not found", assignmentID)
	}
	s.logger.Info("assignment evicted",
		logging.String(logging.FieldAssignmentID, assignmentID),
	)
	return nil
}
