// Package review holds rewritten records for operator approval before they
// continue into speech generation.
package review

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/services"
)

const operatorStage = "review"

// Enqueuer re-enters approved records into the processing queue. Satisfied by
// the pipeline engine.
type Enqueuer interface {
	Enqueue(ids ...int64) int
}

// Edits carries optional operator corrections applied on approval. Nil fields
// leave the stored text untouched.
type Edits struct {
	TranscriptionText *string
	RewriteText       *string
}

// Gate is a FIFO of records waiting for operator review.
type Gate struct {
	store    *media.Store
	enqueuer Enqueuer
	logger   *slog.Logger

	mu      sync.Mutex
	order   []int64
	pending map[int64]struct{}
}

// New constructs a review gate. Call Rehydrate before starting the pipeline so
// records parked by a previous run reappear in the queue.
func New(store *media.Store, enqueuer Enqueuer, logger *slog.Logger) *Gate {
	return &Gate{
		store:    store,
		enqueuer: enqueuer,
		logger:   logging.NewComponentLogger(logger, "review"),
		pending:  make(map[int64]struct{}),
	}
}

// Rehydrate loads records already parked in review from the database.
func (g *Gate) Rehydrate(ctx context.Context) error {
	records, err := g.store.RecordsByStatus(ctx, media.StatusReviewPending)
	if err != nil {
		return err
	}

	g.mu.Lock()
	for _, record := range records {
		g.addLocked(record.ID)
	}
	count := len(g.order)
	g.mu.Unlock()

	if count > 0 {
		g.logger.Info("restored records waiting for review", logging.Int("count", count))
	}
	return nil
}

// Add parks a record in the review queue. Duplicates are ignored.
func (g *Gate) Add(_ context.Context, id int64) error {
	g.mu.Lock()
	g.addLocked(id)
	g.mu.Unlock()
	return nil
}

func (g *Gate) addLocked(id int64) {
	if id <= 0 {
		return
	}
	if _, ok := g.pending[id]; ok {
		return
	}
	g.pending[id] = struct{}{}
	g.order = append(g.order, id)
}

func (g *Gate) removeLocked(id int64) {
	if _, ok := g.pending[id]; !ok {
		return
	}
	delete(g.pending, id)
	for i, queued := range g.order {
		if queued == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// PendingCount returns the number of records waiting for review.
func (g *Gate) PendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.order)
}

// Pending returns the records waiting for review in arrival order.
func (g *Gate) Pending(ctx context.Context) ([]*media.FileRecord, error) {
	g.mu.Lock()
	ids := make([]int64, len(g.order))
	copy(ids, g.order)
	g.mu.Unlock()

	records := make([]*media.FileRecord, 0, len(ids))
	for _, id := range ids {
		record, err := g.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if record == nil || record.Status != media.StatusReviewPending {
			g.mu.Lock()
			g.removeLocked(id)
			g.mu.Unlock()
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Approve releases a record into speech generation, applying any operator
// edits first. Edited text is flagged so later runs do not overwrite it when
// edit preservation is enabled.
func (g *Gate) Approve(ctx context.Context, id int64, edits Edits) error {
	record, err := g.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return services.Wrap(services.ErrNotFound, operatorStage, "approve", "file not found", nil)
	}
	if record.Status != media.StatusReviewPending {
		return services.Wrap(services.ErrPrecondition, operatorStage, "approve", "file is not waiting for review", nil)
	}

	if edits.TranscriptionText != nil && *edits.TranscriptionText != record.TranscriptionText {
		record.TranscriptionText = *edits.TranscriptionText
		record.TranscriptionEdited = true
	}
	if edits.RewriteText != nil && *edits.RewriteText != record.RewriteText {
		record.RewriteText = *edits.RewriteText
		record.RewriteEdited = true
	}

	record.Status = media.StatusApproved
	record.ProgressMessage = "Approved for speech generation"
	if err := g.store.Update(ctx, record); err != nil {
		return err
	}

	g.mu.Lock()
	g.removeLocked(id)
	g.mu.Unlock()

	g.logger.Info("record approved",
		logging.Int64(logging.FieldFileID, id),
		logging.Bool("edited", record.RewriteEdited || record.TranscriptionEdited),
	)
	if g.enqueuer != nil {
		g.enqueuer.Enqueue(id)
	}
	return nil
}

// ApproveAll approves every waiting record without edits. Returns the number
// approved; stops on the first store error.
func (g *Gate) ApproveAll(ctx context.Context) (int, error) {
	g.mu.Lock()
	ids := make([]int64, len(g.order))
	copy(ids, g.order)
	g.mu.Unlock()

	approved := 0
	for _, id := range ids {
		if err := g.Approve(ctx, id, Edits{}); err != nil {
			if services.Kind(err) == "not_found" || services.Kind(err) == "precondition" {
				continue
			}
			return approved, err
		}
		approved++
	}
	return approved, nil
}

// Reject removes a record from the review queue and marks it rejected. A
// rejected record stays in the database; reprocessing it produces new text
// and sends it back through review.
func (g *Gate) Reject(ctx context.Context, id int64, reason string) error {
	record, err := g.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return services.Wrap(services.ErrNotFound, operatorStage, "reject", "file not found", nil)
	}
	if record.Status != media.StatusReviewPending {
		return services.Wrap(services.ErrPrecondition, operatorStage, "reject", "file is not waiting for review", nil)
	}

	record.Status = media.StatusRejected
	message := strings.TrimSpace(reason)
	if message == "" {
		message = "Rejected during review"
	}
	record.ProgressMessage = message
	if err := g.store.Update(ctx, record); err != nil {
		return err
	}

	g.mu.Lock()
	g.removeLocked(id)
	g.mu.Unlock()

	g.logger.Info("record rejected", logging.Int64(logging.FieldFileID, id))
	return nil
}

// Resubmit sends a rejected record back to the review queue unchanged.
func (g *Gate) Resubmit(ctx context.Context, id int64) error {
	record, err := g.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return services.Wrap(services.ErrNotFound, operatorStage, "resubmit", "file not found", nil)
	}
	if record.Status != media.StatusRejected {
		return services.Wrap(services.ErrPrecondition, operatorStage, "resubmit", "file is not rejected", nil)
	}

	record.Status = media.StatusReviewPending
	record.ProgressMessage = "Waiting for review"
	if err := g.store.Update(ctx, record); err != nil {
		return err
	}

	g.mu.Lock()
	g.addLocked(id)
	g.mu.Unlock()
	return nil
}
