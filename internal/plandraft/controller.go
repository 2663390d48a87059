// Package plandraft drives one plan editing session: it decides whether the
// projected schedule with draft messages or the persisted delivery events are
// authoritative, feeds structure edits to a debounced price estimate and routes
// saves to the right plan API call.
package plandraft

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	u "github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/bloomplan/internal/errs"
	"github.com/and161185/bloomplan/internal/estimator"
	"github.com/and161185/bloomplan/internal/messages"
	"github.com/and161185/bloomplan/internal/model"
	"github.com/and161185/bloomplan/internal/schedule"
)

// PlanAPI is the part of the plan API a drafting session needs.
type PlanAPI interface {
	GetPlan(ctx context.Context, id u.UUID) (*model.Plan, error)
	GetProjectedDeliveries(ctx context.Context, id u.UUID) ([]model.ProjectedDelivery, error)
	UpdatePlan(ctx context.Context, id u.UUID, p model.PlanPatch) (*model.Plan, error)
	UpdateEvent(ctx context.Context, eventID u.UUID, message string) (model.DeliveryEvent, error)
	CalculatePrice(ctx context.Context, req model.PriceRequest) (model.PriceQuote, error)
}

// Phase is the lifecycle state of a session.
type Phase int

const (
	// PhaseLoading is set until Load succeeds.
	PhaseLoading Phase = iota
	// PhaseReady accepts edits and saves.
	PhaseReady
	// PhaseSaving has a save in flight; further saves are refused.
	PhaseSaving
	// PhaseSaved means the last save succeeded.
	PhaseSaved
)

func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseSaving:
		return "saving"
	case PhaseSaved:
		return "saved"
	default:
		return "loading"
	}
}

// Estimate is a snapshot of the price estimate.
type Estimate = estimator.State[model.PriceRequest, model.PriceQuote]

// DefaultSaveConcurrency bounds parallel event updates after payment.
const DefaultSaveConcurrency = 4

// Slot is one delivery as shown to the customer. EventID is set after payment.
type Slot struct {
	Key     string
	Index   int
	Date    time.Time
	Message string
	EventID u.UUID
}

type options struct {
	quiet            time.Duration
	clock            estimator.Clock
	priceObserver    func(Estimate)
	serverProjection bool
	saveConcurrency  int
}

// Option configures a Controller.
type Option func(*options)

// WithQuietPeriod sets the price debounce period.
func WithQuietPeriod(d time.Duration) Option { return func(o *options) { o.quiet = d } }

// WithClock replaces the debounce clock.
func WithClock(c estimator.Clock) Option { return func(o *options) { o.clock = c } }

// WithPriceObserver receives every price estimate snapshot in order, off the
// caller's goroutine.
func WithPriceObserver(fn func(Estimate)) Option { return func(o *options) { o.priceObserver = fn } }

// WithServerProjection toggles asking the server for projected dates on load (default on).
func WithServerProjection(on bool) Option { return func(o *options) { o.serverProjection = on } }

// WithSaveConcurrency bounds parallel event updates; values below 1 mean 1.
func WithSaveConcurrency(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.saveConcurrency = n
	}
}

// Controller owns the state of one plan editing session. All methods are safe
// for concurrent use; network calls run without holding the lock.
type Controller struct {
	api  PlanAPI
	log  *zap.Logger
	opts options
	est  *estimator.Estimator[model.PriceRequest, model.PriceQuote]

	mu             sync.Mutex
	phase          Phase
	plan           *model.Plan
	structure      model.Structure
	structureDirty bool
	projected      []model.ProjectedDelivery
	editor         *messages.Editor
	lastErr        error
}

// New builds a controller. Cancelling ctx tears down the price estimate like Close.
func New(ctx context.Context, api PlanAPI, log *zap.Logger, opts ...Option) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	o := options{serverProjection: true, saveConcurrency: DefaultSaveConcurrency}
	for _, fn := range opts {
		fn(&o)
	}
	c := &Controller{api: api, log: log, opts: o, phase: PhaseLoading}

	estOpts := []estimator.Option[model.PriceRequest, model.PriceQuote]{
		estimator.WithLogger[model.PriceRequest, model.PriceQuote](log.Named("price")),
		estimator.WithQuietPeriod[model.PriceRequest, model.PriceQuote](o.quiet),
		estimator.WithClock[model.PriceRequest, model.PriceQuote](o.clock),
	}
	if o.priceObserver != nil {
		estOpts = append(estOpts, estimator.WithObserver(o.priceObserver))
	}
	c.est = estimator.New(ctx, c.quote, estOpts...)
	return c
}

func (c *Controller) quote(ctx context.Context, req model.PriceRequest) (model.PriceQuote, error) {
	q, err := c.api.CalculatePrice(ctx, req)
	if err != nil {
		return model.PriceQuote{}, fmt.Errorf("%w: %w", errs.ErrPriceUnavailable, err)
	}
	return q, nil
}

// Load fetches the plan and prepares the delivery view. A missing id or a failed
// fetch is fatal for the session.
func (c *Controller) Load(ctx context.Context, planID u.UUID) error {
	if planID == u.Nil {
		return errs.ErrMissingPlanID
	}
	c.mu.Lock()
	c.phase = PhaseLoading
	c.mu.Unlock()

	plan, err := c.api.GetPlan(ctx, planID)
	if err != nil {
		c.log.Warn("load plan", zap.String("plan_id", planID.String()), zap.Error(err))
		return fmt.Errorf("%w: %w", errs.ErrPlanUnavailable, err)
	}

	if plan.HasEvents() {
		c.loadEvents(plan)
		return nil
	}

	projected := schedule.ForStructure(plan.Structure)
	if c.opts.serverProjection {
		projected = c.reconcile(ctx, plan, projected)
	}

	c.mu.Lock()
	c.plan = plan
	c.structure = plan.Structure
	c.structureDirty = false
	c.projected = projected
	c.editor = messages.Load(draftKeys(projected), plan.DraftCardMessages)
	c.lastErr = nil
	c.phase = PhaseReady
	c.mu.Unlock()

	c.est.Update(model.PriceRequest{PlanID: plan.ID})
	return nil
}

// reconcile prefers the server projection. The local one is used when the server
// cannot answer; disagreement is logged as drift.
func (c *Controller) reconcile(ctx context.Context, plan *model.Plan, local []model.ProjectedDelivery) []model.ProjectedDelivery {
	remote, err := c.api.GetProjectedDeliveries(ctx, plan.ID)
	if err != nil {
		c.log.Info("server projection unavailable, using local schedule",
			zap.String("plan_id", plan.ID.String()), zap.Error(err))
		return local
	}
	if !schedule.Equal(remote, local) {
		c.log.Warn("projected deliveries drift",
			zap.String("plan_id", plan.ID.String()),
			zap.Int("server_count", len(remote)),
			zap.Int("local_count", len(local)))
	}
	return remote
}

func (c *Controller) loadEvents(plan *model.Plan) {
	events := slices.Clone(plan.Events)
	slices.SortFunc(events, func(a, b model.DeliveryEvent) int { return a.Index - b.Index })
	plan.Events = events

	keys := make([]string, 0, len(events))
	existing := make(map[string]string, len(events))
	for _, e := range events {
		k := e.ID.String()
		keys = append(keys, k)
		existing[k] = e.MessageText()
	}

	c.mu.Lock()
	c.plan = plan
	c.structure = plan.Structure
	c.structureDirty = false
	c.projected = nil
	c.editor = messages.Load(keys, existing)
	c.lastErr = nil
	c.phase = PhaseReady
	c.mu.Unlock()
}

func draftKeys(ds []model.ProjectedDelivery) []string {
	keys := make([]string, 0, len(ds))
	for _, d := range ds {
		keys = append(keys, model.DraftKey(d.Index))
	}
	return keys
}

// loaded returns the plan under c.mu or ErrPlanUnavailable.
func (c *Controller) loaded() (*model.Plan, error) {
	if c.plan == nil {
		return nil, fmt.Errorf("%w: not loaded", errs.ErrPlanUnavailable)
	}
	return c.plan, nil
}

// PrePayment reports whether the projected schedule is authoritative.
func (c *Controller) PrePayment() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan != nil && !c.plan.HasEvents()
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// LastError returns the error of the last failed save, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Plan returns the last plan snapshot received from the server.
func (c *Controller) Plan() (model.Plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.plan == nil {
		return model.Plan{}, false
	}
	return *c.plan, true
}

// Structure returns the structure being edited.
func (c *Controller) Structure() model.Structure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.structure
}

// Price returns the current price estimate.
func (c *Controller) Price() Estimate { return c.est.State() }

// FlushPrice prices the latest structure edit without waiting for the quiet period.
func (c *Controller) FlushPrice() { c.est.Flush() }

// Deliveries lists the delivery slots with the messages as they would be saved.
func (c *Controller) Deliveries() []Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.plan == nil {
		return nil
	}
	resolved := c.editor.Resolved()
	if c.plan.HasEvents() {
		out := make([]Slot, 0, len(c.plan.Events))
		for _, e := range c.plan.Events {
			k := e.ID.String()
			out = append(out, Slot{Key: k, Index: e.Index, Date: e.DeliveryDate, Message: resolved[k], EventID: e.ID})
		}
		return out
	}
	out := make([]Slot, 0, len(c.projected))
	for _, d := range c.projected {
		k := model.DraftKey(d.Index)
		out = append(out, Slot{Key: k, Index: d.Index, Date: d.Date, Message: resolved[k]})
	}
	return out
}

// EditStructure applies new scheduling and budget values before payment. The
// projection is recomputed at once and a new price estimate is scheduled.
func (c *Controller) EditStructure(s model.Structure) error {
	c.mu.Lock()
	plan, err := c.loaded()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if plan.HasEvents() {
		c.mu.Unlock()
		return fmt.Errorf("%w: schedule is fixed after payment", errs.ErrPlanActive)
	}
	if err := s.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	s.StartDate = model.DateOf(s.StartDate)
	c.structure = s
	c.structureDirty = true
	c.projected = schedule.ForStructure(s)
	c.editor.Reindex(draftKeys(c.projected))
	id := plan.ID
	c.mu.Unlock()

	c.est.Update(model.PriceRequest{PlanID: id, Structure: &s})
	return nil
}

// Message editing.

// Mode returns the message editing mode.
func (c *Controller) Mode() messages.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editor == nil {
		return messages.ModeSingle
	}
	return c.editor.Mode()
}

// SetMode switches the message editing mode.
func (c *Controller) SetMode(m messages.Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.loaded(); err != nil {
		return err
	}
	c.editor.SetMode(m)
	return nil
}

// SetSingleMessage switches to single mode with text for every delivery.
func (c *Controller) SetSingleMessage(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.loaded(); err != nil {
		return err
	}
	c.editor.SetMode(messages.ModeSingle)
	c.editor.SetSingle(text)
	return nil
}

// SetMessage switches to multiple mode and sets the message of one slot.
func (c *Controller) SetMessage(key, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.loaded(); err != nil {
		return err
	}
	if err := c.editor.Set(key, text); err != nil {
		return err
	}
	c.editor.SetMode(messages.ModeMultiple)
	return nil
}

// Saving.

func (c *Controller) beginSave() (*model.Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	plan, err := c.loaded()
	if err != nil {
		return nil, err
	}
	if c.phase == PhaseSaving {
		return nil, errs.ErrSaveInProgress
	}
	c.phase = PhaseSaving
	return plan, nil
}

// endSave must be called with c.mu held.
func (c *Controller) endSave(err error) error {
	if err != nil {
		c.phase = PhaseReady
		c.lastErr = fmt.Errorf("%w: %w", errs.ErrSaveFailed, err)
		c.log.Warn("save failed", zap.Error(err))
		return c.lastErr
	}
	c.phase = PhaseSaved
	c.lastErr = nil
	return nil
}

func (c *Controller) fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endSave(err)
}

// adopt takes the server's plan after an update, keeping local edits.
func (c *Controller) adopt(updated *model.Plan) {
	if updated == nil {
		return
	}
	c.plan = updated
}

// SaveStructure persists the edited structure.
func (c *Controller) SaveStructure(ctx context.Context) error {
	if !c.PrePayment() {
		return fmt.Errorf("%w: schedule is fixed after payment", errs.ErrPlanActive)
	}
	plan, err := c.beginSave()
	if err != nil {
		return err
	}
	c.mu.Lock()
	s := c.structure
	c.mu.Unlock()

	updated, err := c.api.UpdatePlan(ctx, plan.ID, model.StructurePatch(s))
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.adopt(updated)
	if c.structure.Equal(s) {
		c.structureDirty = false
	}
	return c.endSave(nil)
}

// UpdateRecipient validates and saves the recipient. Invalid input never reaches the API.
func (c *Controller) UpdateRecipient(ctx context.Context, r model.Recipient) error {
	if err := r.Validate(); err != nil {
		return err
	}
	plan, err := c.beginSave()
	if err != nil {
		return err
	}
	updated, err := c.api.UpdatePlan(ctx, plan.ID, model.PlanPatch{Recipient: &r})
	if err != nil {
		return c.fail(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adopt(updated)
	return c.endSave(nil)
}

// SaveMessages persists card messages. Before payment the full draft map is
// written in one plan update, together with a pending structure edit so keys and
// schedule stay aligned. After payment only changed events are written.
func (c *Controller) SaveMessages(ctx context.Context) error {
	plan, err := c.beginSave()
	if err != nil {
		return err
	}
	if plan.HasEvents() {
		return c.saveEventMessages(ctx)
	}

	c.mu.Lock()
	resolved := c.editor.Resolved()
	patch := model.PlanPatch{DraftCardMessages: resolved}
	s, dirty := c.structure, c.structureDirty
	if dirty {
		sp := model.StructurePatch(s)
		patch.Frequency, patch.StartDate, patch.Years, patch.Budget = sp.Frequency, sp.StartDate, sp.Years, sp.Budget
	}
	c.mu.Unlock()

	updated, err := c.api.UpdatePlan(ctx, plan.ID, patch)
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.adopt(updated)
	c.editor.Commit(resolved)
	if dirty && c.structure.Equal(s) {
		c.structureDirty = false
	}
	return c.endSave(nil)
}

func (c *Controller) saveEventMessages(ctx context.Context) error {
	c.mu.Lock()
	changed := c.editor.Changed()
	c.mu.Unlock()

	ids := make(map[string]u.UUID, len(changed))
	for key := range changed {
		id, err := u.FromString(key)
		if err != nil {
			return c.fail(fmt.Errorf("bad event id %q: %w", key, err))
		}
		ids[key] = id
	}

	var (
		smu   sync.Mutex
		saved = make(map[string]string, len(changed))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.saveConcurrency)
	for key, msg := range changed {
		id := ids[key]
		g.Go(func() error {
			if _, err := c.api.UpdateEvent(gctx, id, msg); err != nil {
				return fmt.Errorf("event %s: %w", id, err)
			}
			smu.Lock()
			saved[key] = msg
			smu.Unlock()
			return nil
		})
	}
	werr := g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.editor.Commit(saved)
	events := slices.Clone(c.plan.Events)
	for i, e := range events {
		if m, ok := saved[e.ID.String()]; ok {
			events[i].Message = &m
		}
	}
	c.plan.Events = events
	return c.endSave(werr)
}

// Close tears down the price estimate. Results arriving afterwards are dropped.
func (c *Controller) Close() { c.est.Close() }
