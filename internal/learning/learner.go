package learning

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brettericmartin/teed-sub011/internal/background"
	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/textutil"
)

// Recorder persists accepted corrections.
type Recorder interface {
	Insert(ctx context.Context, c product.Correction) error
}

// Result reports whether a correction was accepted for learning.
type Result struct {
	Learned bool   `json:"learned"`
	ID      string `json:"id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Learner applies the quality gate and schedules persistence.
type Learner struct {
	store  Recorder
	tasks  *background.Runner
	cfg    config.Learning
	logger *slog.Logger
	now    func() time.Time
}

// NewLearner constructs a Learner. A nil store or a disabled config makes
// every submission a no-op. A nil tasks runner persists inline.
func NewLearner(store Recorder, tasks *background.Runner, cfg config.Learning, logger *slog.Logger) *Learner {
	return &Learner{
		store:  store,
		tasks:  tasks,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "learning"),
		now:    time.Now,
	}
}

// Submit gates c and, when it passes, schedules it for storage. It never
// returns an error: rejected corrections are dropped and storage failures are
// logged by the background task.
func (l *Learner) Submit(ctx context.Context, c product.Correction, related *product.ValidatedProduct) Result {
	if l == nil || l.store == nil || !l.cfg.Enabled {
		return Result{Reason: "learning disabled"}
	}
	logger := logging.WithContext(ctx, l.logger)
	if c.Type == "" {
		c.Type = product.CorrectionOther
	}
	c.CorrectedValue = strings.TrimSpace(c.CorrectedValue)
	if related != nil {
		if c.ProductID == "" {
			c.ProductID = textutil.ProductKey(related.Brand, related.Name)
		}
		if c.ObjectID == "" {
			c.ObjectID = related.ObjectID
		}
	}

	ok, reason := Gate(l.cfg, c, related)
	if !ok {
		logger.Info("correction rejected", logging.Args(append(
			logging.DecisionAttrs("correction_gate", "rejected", reason),
			logging.String("correction_type", string(c.Type)),
			logging.String("stage", c.Stage),
		)...)...)
		return Result{Reason: reason}
	}

	c.ID = uuid.NewString()
	c.CreatedAt = l.now().UTC()
	persist := func(taskCtx context.Context) error {
		return l.store.Insert(taskCtx, c)
	}
	if l.tasks == nil {
		if err := persist(context.WithoutCancel(ctx)); err != nil {
			logging.WarnWithContext(logger, "correction not stored", "correction_persist_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "correction will not influence future identifications"),
			)
		}
	} else if err := l.tasks.Go(ctx, "store correction", persist); err != nil {
		logging.WarnWithContext(logger, "correction not scheduled", "correction_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "correction will not influence future identifications"),
		)
	}

	logger.Info("correction accepted", logging.Args(append(
		logging.DecisionAttrs("correction_gate", "accepted", "quality gate passed"),
		logging.String("correction_id", c.ID),
		logging.String("correction_type", string(c.Type)),
		logging.String("stage", c.Stage),
	)...)...)
	return Result{Learned: true, ID: c.ID}
}
