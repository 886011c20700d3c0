// Package orchestrator drives the client: it holds the active view, accepts
// user actions, and keeps local state consistent with the remote API.
//
// All state is owned by a single loop goroutine. Actions and async results
// are queued as events and applied one at a time in arrival order; gateway
// calls are the only suspension points and run off the loop.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmynk/splitwiser-client/internal/api"
	"github.com/mmynk/splitwiser-client/internal/detail"
	"github.com/mmynk/splitwiser-client/internal/members"
	"github.com/mmynk/splitwiser-client/internal/metrics"
	"github.com/mmynk/splitwiser-client/internal/models"
	"github.com/mmynk/splitwiser-client/internal/notify"
)

var (
	ErrStopped         = errors.New("orchestrator stopped")
	ErrNotAvailable    = errors.New("action not available in the current view")
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrMissingFields   = errors.New("email and password are required")
	ErrEmptyGroupName  = errors.New("group name is required")
	ErrTooFewMembers   = errors.New("too few members")
	ErrEmptyGroupID    = errors.New("group id is required")
	ErrSessionNotSaved = errors.New("could not save session")
	ErrBadCredential   = errors.New("server returned an unreadable credential")
)

// User-facing messages.
const (
	msgRegistered      = "Registration successful! Please log in."
	msgLoggedIn        = "Login successful!"
	msgLoggedOut       = "Logged out successfully."
	msgSessionExpired  = "Your session has expired. Please log in again."
	msgLoginRequired   = "Please log in first."
	msgMissingFields   = "Email and password are required."
	msgSessionNotSaved = "Could not save your session."
	msgBadCredential   = "Login failed: the server returned an invalid session. Please try again."
	msgEmptyMember     = "Member name cannot be empty."
	msgDuplicateMember = "This member has already been added."
	msgEmptyGroupName  = "Group name is required."
	msgGroupCreated    = "Group created successfully!"
	msgIncomplete      = "Please fill out all expense fields."
	msgExpenseAdded    = "Expense added successfully!"
)

// Gateway is the subset of the API gateway the orchestrator calls.
type Gateway interface {
	detail.Fetcher
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (string, error)
	FetchGroups(ctx context.Context) ([]models.Group, error)
	CreateGroup(ctx context.Context, name string, members []string) (models.Group, error)
	CreateExpense(ctx context.Context, groupID string, expense models.NewExpense) (models.Expense, error)
}

// Session is the credential store the orchestrator reads identity from.
type Session interface {
	SetCredential(token string) error
	ClearCredential() error
	ValidateAndMaybeClear() (models.Identity, bool)
}

// Notifier surfaces outcomes to the user.
type Notifier interface {
	Notify(message string, kind notify.Kind)
}

// binding is a group detail activation in flight.
type binding struct {
	groupID    string
	generation uint64
}

type event struct {
	action Action
	apply  func()
	query  func()
	task   *task
}

// Orchestrator is the view state machine. Create it with New and start its
// loop with Run; Dispatch and State may be called from any goroutine.
type Orchestrator struct {
	session  Session
	gateway  Gateway
	notifier Notifier
	builder  *members.Builder
	logger   *slog.Logger

	events  chan event
	stopped chan struct{}
	ready   <-chan error
	ctx     context.Context

	skipRefresh bool

	// Loop-owned state below.
	view     View
	identity models.Identity
	groups   []models.Group
	detail   *detail.Session
	pending  *binding

	// generation numbers group detail activations; listGen numbers group
	// list refreshes; epoch numbers login sessions.
	generation uint64
	listGen    uint64
	epoch      uint64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithoutInitialRefresh starts in GroupList with an empty list instead of
// fetching it. Callers dispatch RefreshGroups when they need the groups.
func WithoutInitialRefresh() Option {
	return func(o *Orchestrator) { o.skipRefresh = true }
}

// New creates an orchestrator. The initial view is derived from the stored
// credential without any network call: GroupList when an identity decodes,
// Auth otherwise. A GroupList start queues its list refresh to run first
// once Run starts.
func New(session Session, gateway Gateway, notifier Notifier, builder *members.Builder, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		session:  session,
		gateway:  gateway,
		notifier: notifier,
		builder:  builder,
		logger:   logger,
		events:   make(chan event, 64),
		stopped:  make(chan struct{}),
		ctx:      context.Background(),
		view:     ViewAuth,
	}
	for _, opt := range opts {
		opt(o)
	}

	identity, ok := session.ValidateAndMaybeClear()
	if ok {
		o.identity = identity
		o.view = ViewGroupList
	}
	if ok && !o.skipRefresh {
		t := newTask()
		o.ready = t.done
		o.events <- event{action: RefreshGroups{}, task: t}
	} else {
		ready := make(chan error, 1)
		ready <- nil
		o.ready = ready
	}
	return o
}

// Ready yields the result of the initial group list refresh, or nil when
// the initial view needs none. It yields once.
func (o *Orchestrator) Ready() <-chan error {
	return o.ready
}

// Run processes events until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.ctx = ctx
	defer close(o.stopped)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-o.events:
			switch {
			case ev.query != nil:
				ev.query()
			case ev.apply != nil:
				ev.apply()
				ev.task.release()
			default:
				o.handle(ev.action, ev.task)
				ev.task.release()
			}
		}
	}
}

// Dispatch queues an action. The returned channel yields the action's error
// (nil on success) once the action and every async step it started have
// been applied.
func (o *Orchestrator) Dispatch(a Action) <-chan error {
	t := newTask()
	select {
	case <-o.stopped:
		t.fail(ErrStopped)
		t.release()
		return t.done
	default:
	}

	select {
	case o.events <- event{action: a, task: t}:
	case <-o.stopped:
		t.fail(ErrStopped)
		t.release()
	}
	return t.done
}

// Do dispatches a and waits for it to complete.
func (o *Orchestrator) Do(ctx context.Context, a Action) error {
	select {
	case err := <-o.Dispatch(a):
		return err
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns a snapshot of the current state.
func (o *Orchestrator) State(ctx context.Context) (State, error) {
	result := make(chan State, 1)
	query := func() { result <- o.snapshot() }

	select {
	case <-o.stopped:
		return State{}, ErrStopped
	default:
	}

	select {
	case o.events <- event{query: query}:
	case <-o.stopped:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}

	select {
	case s := <-result:
		return s, nil
	case <-o.stopped:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

func (o *Orchestrator) handle(a Action, t *task) {
	o.logger.Debug("Action received", "action", fmt.Sprintf("%T", a), "view", o.view)

	switch a := a.(type) {
	case Register:
		o.register(a, t)
	case Login:
		o.login(a, t)
	case Logout:
		o.logout(t)
	case RefreshGroups:
		if o.requireSession(t) {
			o.refreshGroups(t)
		}
	case AddMember:
		o.addMember(a, t)
	case RemoveMember:
		o.builder.Remove(a.Name)
	case CreateGroup:
		o.createGroup(a, t)
	case Open:
		o.open(a, t)
	case Back:
		o.back(t)
	case SelectPayer:
		o.withDetail(t, func(s *detail.Session) error { return s.SelectPayer(a.Name) })
	case SetParticipant:
		o.withDetail(t, func(s *detail.Session) error { return s.SetParticipant(a.Name, a.Checked) })
	case SubmitExpense:
		o.submitExpense(a.Form, t)
	case AddExpense:
		if o.view != ViewGroupDetail || o.detail == nil {
			o.unavailable(t, a)
			return
		}
		o.submitExpense(o.detail.Form(a.Description, a.Amount), t)
	default:
		t.fail(fmt.Errorf("unknown action %T", a))
	}
}

// async runs call off the loop; the func it returns is applied on the loop.
func (o *Orchestrator) async(t *task, call func(ctx context.Context) func()) {
	t.hold()
	ctx := o.ctx
	go func() {
		apply := call(ctx)
		select {
		case o.events <- event{apply: apply, task: t}:
		case <-o.stopped:
		}
	}()
}

func (o *Orchestrator) register(a Register, t *task) {
	if strings.TrimSpace(a.Username) == "" || a.Password == "" {
		o.invalid(t, ErrMissingFields, msgMissingFields)
		return
	}
	o.async(t, func(ctx context.Context) func() {
		err := o.gateway.Register(ctx, a.Username, a.Password)
		return func() {
			if err != nil {
				o.remoteFailure(t, err, false)
				return
			}
			o.notifier.Notify(msgRegistered, notify.KindSuccess)
		}
	})
}

func (o *Orchestrator) login(a Login, t *task) {
	if strings.TrimSpace(a.Username) == "" || a.Password == "" {
		o.invalid(t, ErrMissingFields, msgMissingFields)
		return
	}
	o.async(t, func(ctx context.Context) func() {
		token, err := o.gateway.Login(ctx, a.Username, a.Password)
		return func() {
			if err != nil {
				o.remoteFailure(t, err, false)
				return
			}
			if err := o.session.SetCredential(token); err != nil {
				o.logger.Error("Failed to store credential", "error", err)
				o.invalid(t, fmt.Errorf("%w: %v", ErrSessionNotSaved, err), msgSessionNotSaved)
				return
			}
			o.endSession()
			if !o.enterInitialView(t) {
				o.invalid(t, ErrBadCredential, msgBadCredential)
				return
			}
			o.notifier.Notify(msgLoggedIn, notify.KindSuccess)
		}
	})
}

// enterInitialView derives the view from the stored credential. A corrupt
// credential is purged by the session store and lands on Auth; it reports
// whether an identity was found.
func (o *Orchestrator) enterInitialView(t *task) bool {
	identity, ok := o.session.ValidateAndMaybeClear()
	if !ok {
		o.identity = models.Identity{}
		o.transition(ViewAuth)
		return false
	}
	o.identity = identity
	o.transition(ViewGroupList)
	o.refreshGroups(t)
	return true
}

func (o *Orchestrator) logout(t *task) {
	if err := o.session.ClearCredential(); err != nil {
		o.logger.Error("Failed to clear credential", "error", err)
	}
	o.endSession()
	o.builder.Reset()
	o.identity = models.Identity{}
	o.transition(ViewAuth)
	o.notifier.Notify(msgLoggedOut, notify.KindSuccess)
}

// expire forces a logout-equivalent reset after the server rejected the
// credential or none was present.
func (o *Orchestrator) expire(t *task, err error, message string) {
	if clearErr := o.session.ClearCredential(); clearErr != nil {
		o.logger.Error("Failed to clear credential", "error", clearErr)
	}
	o.endSession()
	o.builder.Reset()
	o.identity = models.Identity{}
	o.transition(ViewAuth)
	o.notifier.Notify(message, notify.KindError)
	t.fail(err)
}

// endSession invalidates every binding and in-flight result of the current
// login session.
func (o *Orchestrator) endSession() {
	o.epoch++
	o.generation++
	o.listGen++
	o.pending = nil
	o.detail = nil
	o.groups = nil
}

// requireSession gates credentialed actions. Without an identity the
// action is not attempted.
func (o *Orchestrator) requireSession(t *task) bool {
	if _, ok := o.session.ValidateAndMaybeClear(); ok {
		return true
	}
	if o.view == ViewAuth {
		o.invalid(t, ErrNotLoggedIn, msgLoginRequired)
	} else {
		o.expire(t, ErrNotLoggedIn, msgSessionExpired)
	}
	return false
}

func (o *Orchestrator) refreshGroups(t *task) {
	o.listGen++
	gen := o.listGen
	o.async(t, func(ctx context.Context) func() {
		groups, err := o.gateway.FetchGroups(ctx)
		return func() {
			if gen != o.listGen {
				o.stale("group_list")
				return
			}
			if err != nil {
				// The list stays visible on failure.
				o.remoteFailure(t, err, true)
				return
			}
			o.groups = groups
		}
	})
}

func (o *Orchestrator) addMember(a AddMember, t *task) {
	err := o.builder.Add(a.Name)
	switch {
	case errors.Is(err, members.ErrEmptyName):
		o.invalid(t, err, msgEmptyMember)
	case errors.Is(err, members.ErrDuplicateName):
		o.invalid(t, err, msgDuplicateMember)
	case err != nil:
		o.invalid(t, err, err.Error())
	}
}

func (o *Orchestrator) createGroup(a CreateGroup, t *task) {
	if o.view != ViewGroupList {
		o.unavailable(t, a)
		return
	}
	name := strings.TrimSpace(a.Name)
	if name == "" {
		o.invalid(t, ErrEmptyGroupName, msgEmptyGroupName)
		return
	}
	if !o.builder.CanSubmit() {
		o.invalid(t, ErrTooFewMembers, tooFewMembersMessage(o.builder.MinMembers()))
		return
	}
	if !o.requireSession(t) {
		return
	}

	names := o.builder.Names()
	epoch := o.epoch
	o.async(t, func(ctx context.Context) func() {
		group, err := o.gateway.CreateGroup(ctx, name, names)
		return func() {
			if epoch != o.epoch {
				o.stale("create_group")
				return
			}
			if err != nil {
				o.remoteFailure(t, err, true)
				return
			}
			o.logger.Info("Group created", "group_id", group.ID, "members_count", len(group.Members))
			o.notifier.Notify(msgGroupCreated, notify.KindSuccess)
			o.builder.Reset()
			o.refreshGroups(t)
		}
	})
}

func (o *Orchestrator) open(a Open, t *task) {
	if o.view != ViewGroupList {
		o.unavailable(t, a)
		return
	}
	if a.GroupID == "" {
		t.fail(ErrEmptyGroupID)
		return
	}
	if !o.requireSession(t) {
		return
	}

	o.generation++
	b := &binding{groupID: a.GroupID, generation: o.generation}
	o.pending = b
	o.logger.Debug("Opening group", "group_id", b.groupID, "generation", b.generation)

	o.async(t, func(ctx context.Context) func() {
		data, err := detail.Load(ctx, o.gateway, b.groupID)
		return func() {
			if o.pending != b {
				o.stale("group_detail")
				return
			}
			o.pending = nil
			if err != nil {
				// Never show a detail view without data: stay on the list.
				o.remoteFailure(t, err, true)
				return
			}
			o.detail = detail.New(b.groupID, b.generation, data)
			o.transition(ViewGroupDetail)
		}
	})
}

func (o *Orchestrator) back(t *task) {
	switch {
	case o.view == ViewGroupDetail:
		o.generation++
		o.detail = nil
		o.transition(ViewGroupList)
		o.refreshGroups(t)
	case o.view == ViewGroupList && o.pending != nil:
		o.logger.Debug("Abandoning pending group", "group_id", o.pending.groupID)
		o.generation++
		o.pending = nil
	default:
		o.unavailable(t, Back{})
	}
}

func (o *Orchestrator) withDetail(t *task, fn func(s *detail.Session) error) {
	if o.view != ViewGroupDetail || o.detail == nil {
		t.fail(ErrNotAvailable)
		return
	}
	if err := fn(o.detail); err != nil {
		o.invalid(t, err, err.Error())
	}
}

func (o *Orchestrator) submitExpense(form detail.ExpenseForm, t *task) {
	if o.view != ViewGroupDetail || o.detail == nil {
		o.unavailable(t, SubmitExpense{Form: form})
		return
	}
	expense, err := detail.Validate(form)
	if err != nil {
		o.invalid(t, err, msgIncomplete)
		return
	}
	if !o.requireSession(t) {
		return
	}

	groupID := o.detail.GroupID()
	gen := o.detail.Generation()
	epoch := o.epoch
	o.async(t, func(ctx context.Context) func() {
		if _, err := o.gateway.CreateExpense(ctx, groupID, expense); err != nil {
			return func() {
				if epoch != o.epoch {
					o.stale("create_expense")
					return
				}
				o.remoteFailure(t, err, true)
			}
		}

		// The list shown is always the server's: re-bind instead of inserting locally.
		data, loadErr := detail.Load(ctx, o.gateway, groupID)
		return func() {
			if epoch != o.epoch {
				o.stale("create_expense")
				return
			}
			o.notifier.Notify(msgExpenseAdded, notify.KindSuccess)
			if o.detail == nil || o.detail.Generation() != gen {
				o.stale("group_detail")
				return
			}
			if loadErr != nil {
				o.generation++
				o.detail = nil
				o.transition(ViewGroupList)
				if o.remoteFailure(t, loadErr, true) {
					o.refreshGroups(t)
				}
				return
			}
			o.detail.Refresh(data)
		}
	})
}

// remoteFailure surfaces a gateway error. Credential rejections reset to
// Auth when credentialed is set. It reports whether the session survived.
func (o *Orchestrator) remoteFailure(t *task, err error, credentialed bool) bool {
	if credentialed && (errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrNoCredential)) {
		o.logger.Warn("Credential rejected", "error", err)
		o.expire(t, err, msgSessionExpired)
		return false
	}
	o.notifier.Notify(api.Message(err), notify.KindError)
	t.fail(err)
	return true
}

// invalid surfaces a local validation failure. View state is untouched.
func (o *Orchestrator) invalid(t *task, err error, message string) {
	o.notifier.Notify(message, notify.KindError)
	t.fail(err)
}

func (o *Orchestrator) unavailable(t *task, a Action) {
	o.logger.Debug("Action ignored", "action", fmt.Sprintf("%T", a), "view", o.view)
	t.fail(ErrNotAvailable)
}

func (o *Orchestrator) stale(kind string) {
	metrics.StaleResults.WithLabelValues(kind).Inc()
	o.logger.Debug("Discarding stale result", "kind", kind)
}

func (o *Orchestrator) transition(to View) {
	from := o.view
	if to != ViewGroupDetail {
		o.detail = nil
	}
	if to == ViewAuth {
		o.pending = nil
	}
	if from == to {
		return
	}
	o.view = to
	metrics.ViewTransitions.WithLabelValues(from.String(), to.String()).Inc()

	attrs := []any{"from", from, "to", to}
	if o.detail != nil {
		attrs = append(attrs, "group_id", o.detail.GroupID())
	}
	o.logger.Info("View changed", attrs...)
}

func (o *Orchestrator) snapshot() State {
	s := State{
		View:           o.view,
		Identity:       o.identity,
		LoggedIn:       o.view != ViewAuth,
		Groups:         append([]models.Group(nil), o.groups...),
		Members:        o.builder.Names(),
		CanCreateGroup: o.builder.CanSubmit(),
	}
	if o.pending != nil {
		s.PendingGroupID = o.pending.groupID
	}
	if o.view == ViewGroupDetail && o.detail != nil {
		s.GroupID = o.detail.GroupID()
		s.Detail = &DetailState{
			Group:        o.detail.Group(),
			Expenses:     o.detail.Expenses(),
			PayerOptions: o.detail.PayerOptions(),
			Payer:        o.detail.Payer(),
			Participants: o.detail.ParticipantStates(),
		}
	}
	return s
}

func tooFewMembersMessage(n int) string {
	switch n {
	case 1:
		return "You must add at least one member to the group."
	case 2:
		return "You must add at least two members to the group."
	default:
		return fmt.Sprintf("You must add at least %d members to the group.", n)
	}
}
