package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/core/llm"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/extractor"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/knowledge"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/metrics"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/server/service/booking"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// State is the conversation phase surfaced to clients.
type State string

const (
	StateIdle       State = "idle"
	StateClarifying State = "clarifying"
	StateConfirming State = "confirming"
)

// Reply is the assistant's answer to one user turn.
type Reply struct {
	SessionUID   string             `json:"sessionUid"`
	Text         string             `json:"text"`
	State        State              `json:"state"`
	Intent       string             `json:"intent"`
	Reservation  *store.Reservation `json:"reservation,omitempty"`
	Alternatives []time.Time        `json:"alternatives,omitempty"`

	// Degraded reports the ErrGroundingUnavailable condition: the LLM or
	// retrieval collaborators were unreachable and Text is a template built
	// from resolver and slot data only.
	Degraded bool `json:"degraded,omitempty"`
}

// Notifier delivers out-of-band confirmations. The email plugin implements
// it; a nil notifier disables delivery.
type Notifier interface {
	ConfirmReservation(ctx context.Context, email string, reservation *store.Reservation) error
}

// MultiNotifier fans a confirmation out to every notifier. All notifiers
// run; the first error is returned.
type MultiNotifier []Notifier

func (m MultiNotifier) ConfirmReservation(ctx context.Context, email string, reservation *store.Reservation) error {
	var firstErr error
	for _, n := range m {
		if err := n.ConfirmReservation(ctx, email, reservation); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

const chitchatPrompt = `You are a friendly assistant for a booking service.
Answer briefly and naturally. You can book, move, and cancel appointments and
answer questions about the business. Do not invent availability or prices.`

const groundedPrompt = `You are a booking service assistant. Answer the user's
question using ONLY the reference material below. If the material does not
cover the question, say you do not know. Do not invent availability, prices,
or policies.

Reference material:
%s`

// sessionState carries the partially-filled intent between turns so a
// clarification answer merges into it instead of starting over.
type sessionState struct {
	pending          *extractor.Intent
	awaitingConfirm  bool
	pendingOperation extractor.Label
}

// Orchestrator runs the per-turn pipeline: load memory, extract intent,
// dispatch to booking or retrieval, reply, persist.
type Orchestrator struct {
	memory    *Memory
	extractor *extractor.Extractor
	booking   booking.Service
	retriever *knowledge.Retriever
	llm       llm.Service
	metrics   *metrics.Exporter
	notifier  Notifier

	window          int
	defaultDuration int
	location        *time.Location
	now             func() time.Time

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	statesMu sync.Mutex
	states   map[string]*sessionState
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithMetrics(e *metrics.Exporter) Option {
	return func(o *Orchestrator) { o.metrics = e }
}

func WithLocation(loc *time.Location) Option {
	return func(o *Orchestrator) { o.location = loc }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithWindow(n int) Option {
	return func(o *Orchestrator) { o.window = n }
}

func NewOrchestrator(memory *Memory, ext *extractor.Extractor, bookingService booking.Service, retriever *knowledge.Retriever, llmService llm.Service, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		memory:          memory,
		extractor:       ext,
		booking:         bookingService,
		retriever:       retriever,
		llm:             llmService,
		window:          DefaultWindow,
		defaultDuration: 60,
		location:        time.UTC,
		now:             time.Now,
		locks:           map[string]*sync.Mutex{},
		states:          map[string]*sessionState{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleTurn processes one user utterance. Turns within a session are
// strictly serialized; sessions are independent.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionUID, utterance string) (*Reply, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, fmt.Errorf("empty utterance")
	}

	// Lock before loading so concurrent first turns cannot create the
	// session twice. A blank UID gets its lock after generation.
	if sessionUID != "" {
		lock := o.sessionLock(sessionUID)
		lock.Lock()
		defer lock.Unlock()
	}
	session, err := o.memory.GetOrCreate(ctx, sessionUID)
	if err != nil {
		return nil, err
	}
	if sessionUID == "" {
		lock := o.sessionLock(session.UID)
		lock.Lock()
		defer lock.Unlock()
	}

	if o.metrics != nil {
		o.metrics.TurnStarted()
		defer o.metrics.TurnFinished()
	}
	started := o.now()

	reply, err := o.handleLocked(ctx, session, utterance)
	if err != nil {
		if o.metrics != nil {
			o.metrics.ObserveTurn("", "error", time.Since(started))
		}
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.ObserveTurn(reply.Intent, string(reply.State), time.Since(started))
	}
	return reply, nil
}

func (o *Orchestrator) handleLocked(ctx context.Context, session *store.ConversationSession, utterance string) (*Reply, error) {
	window, err := o.memory.Window(ctx, session, o.window)
	if err != nil {
		return nil, err
	}

	state := o.sessionState(session.UID)

	// An answered confirmation prompt short-circuits extraction.
	if state.awaitingConfirm {
		if reply, handled, err := o.handleConfirmation(ctx, session, state, utterance); handled {
			if err != nil {
				return nil, err
			}
			return o.commitTurn(ctx, session, utterance, nil, reply)
		}
		// Anything else drops the gate and is treated as a fresh turn.
		state.awaitingConfirm = false
	}

	intent, err := o.extractor.Extract(ctx, utterance, o.promptWindow(session, window), o.now().In(o.location))
	if err != nil && !errors.Is(err, ErrAmbiguousSlot) {
		return nil, fmt.Errorf("extract intent: %w", err)
	}
	ambiguousSlot := errors.Is(err, ErrAmbiguousSlot)

	// Merge the carried partial intent so a clarification answer only needs
	// to supply the missing piece.
	if state.pending != nil {
		intent.Merge(state.pending)
	}

	var reply *Reply
	switch intent.Label {
	case extractor.LabelBook:
		reply, err = o.handleBook(ctx, session, state, intent, ambiguousSlot)
	case extractor.LabelModify:
		reply, err = o.handleModify(ctx, session, state, intent, ambiguousSlot)
	case extractor.LabelCancel:
		reply, err = o.handleCancel(ctx, session, state, intent)
	case extractor.LabelQuery:
		reply, err = o.handleQuery(ctx, session, utterance)
	default:
		reply, err = o.handleChitchat(ctx, session, utterance, window)
	}
	if err != nil {
		return nil, err
	}
	reply.Intent = string(intent.Label)

	intentJSON := encodeIntent(intent)
	return o.commitTurn(ctx, session, utterance, intentJSON, reply)
}

// commitTurn persists the user and assistant turns and kicks off async
// summarization when the backlog warrants it.
func (o *Orchestrator) commitTurn(ctx context.Context, session *store.ConversationSession, utterance string, intentJSON *string, reply *Reply) (*Reply, error) {
	if _, err := o.memory.Append(ctx, session, store.TurnRoleUser, utterance, intentJSON); err != nil {
		return nil, err
	}
	if _, err := o.memory.Append(ctx, session, store.TurnRoleAssistant, reply.Text, nil); err != nil {
		return nil, err
	}
	reply.SessionUID = session.UID

	if o.memory.NeedsSummary(ctx, session) {
		uid := session.UID
		go func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := o.memory.Summarize(sctx, uid); err != nil {
				slog.Warn("dialogue: async summarization failed", "session", uid, "error", err)
			}
		}()
	}
	return reply, nil
}

func (o *Orchestrator) handleBook(ctx context.Context, session *store.ConversationSession, state *sessionState, intent *extractor.Intent, ambiguousSlot bool) (*Reply, error) {
	if ambiguousSlot {
		state.pending = intent
		return &Reply{
			State: StateClarifying,
			Text:  "I could not pin down the date from that. Which date did you mean, for example 2026-03-14 or \"next friday\"?",
		}, nil
	}
	if missing := intent.MissingBookingSlots(); len(missing) > 0 {
		state.pending = intent
		return &Reply{
			State: StateClarifying,
			Text:  clarificationFor(missing[0]),
		}, nil
	}

	start, err := extractor.SlotStart(intent, o.location)
	if err != nil {
		state.pending = intent
		return &Reply{
			State: StateClarifying,
			Text:  "I have the details but the date or time did not parse. Could you restate when you would like the appointment?",
		}, nil
	}

	// All slots present: ask for an explicit go-ahead before committing.
	state.pending = intent
	state.awaitingConfirm = true
	state.pendingOperation = extractor.LabelBook
	duration := extractor.SlotDurationMinutes(intent, o.defaultDuration)
	return &Reply{
		State: StateConfirming,
		Text: fmt.Sprintf("To confirm: a %d minute %s for %s on %s at %s. Shall I book it?",
			duration,
			intent.SlotValue(extractor.SlotService),
			intent.SlotValue(extractor.SlotName),
			start.Format(extractor.DateLayout),
			start.Format(extractor.TimeLayout)),
	}, nil
}

// handleConfirmation consumes yes/no answers to a confirmation prompt.
// handled is false when the utterance is neither, so the caller treats it as
// a fresh turn.
func (o *Orchestrator) handleConfirmation(ctx context.Context, session *store.ConversationSession, state *sessionState, utterance string) (*Reply, bool, error) {
	if extractor.IsNegative(utterance) {
		state.pending = nil
		state.awaitingConfirm = false
		return &Reply{
			State:  StateIdle,
			Intent: string(state.pendingOperation),
			Text:   "No problem, I have not booked anything. Is there anything else I can help with?",
		}, true, nil
	}
	if !extractor.IsAffirmative(utterance) {
		return nil, false, nil
	}

	intent := state.pending
	state.pending = nil
	state.awaitingConfirm = false
	if intent == nil {
		return &Reply{State: StateIdle, Text: "I lost track of the request. Could you restate the booking?"}, true, nil
	}

	reply, err := o.commitBooking(ctx, state, intent)
	if err != nil {
		return nil, true, err
	}
	reply.Intent = string(extractor.LabelBook)
	return reply, true, nil
}

func (o *Orchestrator) commitBooking(ctx context.Context, state *sessionState, intent *extractor.Intent) (*Reply, error) {
	start, err := extractor.SlotStart(intent, o.location)
	if err != nil {
		return &Reply{
			State: StateClarifying,
			Text:  "The date or time no longer parses. Could you restate when you would like the appointment?",
		}, nil
	}
	req := &booking.Request{
		ServiceType:  intent.SlotValue(extractor.SlotService),
		CustomerName: intent.SlotValue(extractor.SlotName),
		Email:        intent.SlotValue(extractor.SlotEmail),
		Phone:        intent.SlotValue(extractor.SlotPhone),
		Start:        start,
		DurationMins: extractor.SlotDurationMinutes(intent, o.defaultDuration),
	}

	reservation, conflict, err := o.booking.Resolve(ctx, req)
	switch {
	case err != nil:
		if errors.Is(err, ErrConcurrencyConflict) {
			o.countBooking("conflict")
			return &Reply{
				State: StateIdle,
				Text:  "That slot was taken while we were talking. Could you pick another time?",
			}, nil
		}
		o.countBooking("error")
		return nil, fmt.Errorf("resolve booking: %w", err)
	case conflict != nil:
		// Keep the intent so the user can answer with just a new time.
		state.pending = intent
		if conflict.NoAvailability {
			o.countBooking("no_availability")
			return &Reply{
				State: StateClarifying,
				Text:  "I could not find any free slot in the coming days. Would a different duration or service work?",
			}, nil
		}
		o.countBooking("conflict")
		return &Reply{
			State:        StateClarifying,
			Text:         "That slot is taken. Nearby free times: " + formatAlternatives(conflict.Alternatives) + ". Does one of those work?",
			Alternatives: conflict.Alternatives,
		}, nil
	default:
		o.countBooking("committed")
		o.notify(ctx, req.Email, reservation)
		return &Reply{
			State:       StateIdle,
			Reservation: reservation,
			Text: fmt.Sprintf("Booked. Your %s is confirmed for %s at %s. A confirmation is on its way to %s.",
				reservation.ServiceType,
				start.Format(extractor.DateLayout),
				start.Format(extractor.TimeLayout),
				req.Email),
		}, nil
	}
}

func (o *Orchestrator) handleModify(ctx context.Context, session *store.ConversationSession, state *sessionState, intent *extractor.Intent, ambiguousSlot bool) (*Reply, error) {
	email := strings.ToLower(intent.SlotValue(extractor.SlotEmail))
	if email == "" {
		state.pending = intent
		return &Reply{
			State: StateClarifying,
			Text:  "Which email address is the reservation under?",
		}, nil
	}
	if ambiguousSlot || intent.SlotValue(extractor.SlotDate) == "" || intent.SlotValue(extractor.SlotTime) == "" {
		state.pending = intent
		return &Reply{
			State: StateClarifying,
			Text:  "When would you like to move it to? A date and time, please.",
		}, nil
	}
	newStart, err := extractor.SlotStart(intent, o.location)
	if err != nil {
		state.pending = intent
		return &Reply{
			State: StateClarifying,
			Text:  "I could not parse the new date and time. Could you restate them?",
		}, nil
	}

	reservation, conflict, err := o.booking.Modify(ctx, &booking.ModifyRequest{
		Email:        email,
		Phone:        intent.SlotValue(extractor.SlotPhone),
		NewStart:     newStart,
		DurationMins: extractor.SlotDurationMinutes(intent, 0),
	})
	switch {
	case err != nil:
		return o.bookingLookupErrorReply(state, intent, err, "move")
	case conflict != nil:
		state.pending = intent
		o.countBooking("conflict")
		if conflict.NoAvailability {
			return &Reply{
				State: StateClarifying,
				Text:  "The new slot is taken and I found no nearby opening. Your original reservation is unchanged. Another time?",
			}, nil
		}
		return &Reply{
			State:        StateClarifying,
			Text:         "The new slot is taken, your original reservation is unchanged. Free nearby: " + formatAlternatives(conflict.Alternatives) + ".",
			Alternatives: conflict.Alternatives,
		}, nil
	default:
		state.pending = nil
		o.countBooking("committed")
		o.notify(ctx, email, reservation)
		return &Reply{
			State:       StateIdle,
			Reservation: reservation,
			Text: fmt.Sprintf("Done. Your %s now starts on %s at %s.",
				reservation.ServiceType,
				newStart.Format(extractor.DateLayout),
				newStart.Format(extractor.TimeLayout)),
		}, nil
	}
}

func (o *Orchestrator) handleCancel(ctx context.Context, session *store.ConversationSession, state *sessionState, intent *extractor.Intent) (*Reply, error) {
	email := strings.ToLower(intent.SlotValue(extractor.SlotEmail))
	if email == "" {
		state.pending = intent
		return &Reply{
			State: StateClarifying,
			Text:  "Which email address is the reservation under?",
		}, nil
	}

	req := &booking.CancelRequest{
		Email: email,
		Phone: intent.SlotValue(extractor.SlotPhone),
	}
	if start, err := extractor.SlotStart(intent, o.location); err == nil {
		req.Around = start
	}

	reservation, err := o.booking.Cancel(ctx, req)
	if err != nil {
		return o.bookingLookupErrorReply(state, intent, err, "cancel")
	}
	state.pending = nil
	o.countBooking("committed")
	return &Reply{
		State:       StateIdle,
		Reservation: reservation,
		Text: fmt.Sprintf("Cancelled. Your %s on %s is no longer booked.",
			reservation.ServiceType,
			time.Unix(reservation.StartTs, 0).In(o.location).Format(extractor.DateLayout)),
	}, nil
}

// bookingLookupErrorReply maps locate failures (not found, ambiguous) to
// conversational replies; anything else is a real error.
func (o *Orchestrator) bookingLookupErrorReply(state *sessionState, intent *extractor.Intent, err error, verb string) (*Reply, error) {
	var ambiguous *booking.AmbiguousMatchError
	switch {
	case errors.Is(err, booking.ErrReservationNotFound):
		o.countBooking("not_found")
		state.pending = nil
		return &Reply{
			State: StateIdle,
			Text:  "I could not find a reservation under that contact. Could you check the email address?",
		}, nil
	case errors.As(err, &ambiguous):
		o.countBooking("ambiguous")
		state.pending = intent
		return &Reply{
			State: StateClarifying,
			Text: fmt.Sprintf("You have %d upcoming reservations: %s. Which one should I %s?",
				len(ambiguous.Candidates), formatCandidates(ambiguous.Candidates, o.location), verb),
		}, nil
	default:
		o.countBooking("error")
		return nil, fmt.Errorf("%s reservation: %w", verb, err)
	}
}

func (o *Orchestrator) handleQuery(ctx context.Context, session *store.ConversationSession, utterance string) (*Reply, error) {
	if o.retriever == nil || o.llm == nil {
		return o.groundingUnavailableReply(), nil
	}
	started := o.now()
	bundle, err := o.retriever.Retrieve(ctx, utterance, 5)
	if err != nil {
		slog.Warn("dialogue: retrieval failed", "session", session.UID, "error", err)
		return o.groundingUnavailableReply(), nil
	}
	if o.metrics != nil {
		o.metrics.ObserveRetrieval(time.Since(started), len(bundle.Passages))
	}
	if bundle.Empty() {
		return &Reply{
			State: StateIdle,
			Text:  "I do not have any reference material on that yet. I can still help you book, move, or cancel an appointment.",
		}, nil
	}

	messages := []llm.Message{
		llm.SystemPrompt(fmt.Sprintf(groundedPrompt, bundle.Render())),
		llm.UserMessage(utterance),
	}
	answer, stats, err := o.llm.Chat(ctx, messages)
	if err != nil {
		slog.Warn("dialogue: grounded answer failed", "session", session.UID, "error", err)
		return o.groundingUnavailableReply(), nil
	}
	o.countTokens(stats)
	return &Reply{State: StateIdle, Text: strings.TrimSpace(answer)}, nil
}

func (o *Orchestrator) handleChitchat(ctx context.Context, session *store.ConversationSession, utterance string, window []*store.ConversationTurn) (*Reply, error) {
	if o.llm == nil {
		return o.groundingUnavailableReply(), nil
	}
	messages := []llm.Message{llm.SystemPrompt(chitchatPrompt)}
	messages = append(messages, o.promptWindow(session, window)...)
	messages = append(messages, llm.UserMessage(utterance))

	answer, stats, err := o.llm.Chat(ctx, messages)
	if err != nil {
		slog.Warn("dialogue: chitchat reply failed", "session", session.UID, "error", err)
		return o.groundingUnavailableReply(), nil
	}
	o.countTokens(stats)
	return &Reply{State: StateIdle, Text: strings.TrimSpace(answer)}, nil
}

// groundingUnavailableReply is the degraded-mode answer when LLM or
// retrieval collaborators are down. It never fabricates availability.
func (o *Orchestrator) groundingUnavailableReply() *Reply {
	return &Reply{
		State:    StateIdle,
		Text:     "I am having trouble reaching my knowledge service right now. I can still book, move, or cancel an appointment if you give me the details.",
		Degraded: true,
	}
}

// promptWindow turns the summary plus recent turns into LLM messages.
func (o *Orchestrator) promptWindow(session *store.ConversationSession, turns []*store.ConversationTurn) []llm.Message {
	var messages []llm.Message
	if session.Summary != "" {
		messages = append(messages, llm.SystemPrompt("Conversation so far: "+session.Summary))
	}
	for _, turn := range turns {
		switch turn.Role {
		case store.TurnRoleUser:
			messages = append(messages, llm.UserMessage(turn.Content))
		case store.TurnRoleAssistant:
			messages = append(messages, llm.AssistantMessage(turn.Content))
		}
	}
	return messages
}

func (o *Orchestrator) sessionLock(uid string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[uid]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[uid] = lock
	}
	return lock
}

func (o *Orchestrator) sessionState(uid string) *sessionState {
	o.statesMu.Lock()
	defer o.statesMu.Unlock()
	state, ok := o.states[uid]
	if !ok {
		state = &sessionState{}
		o.states[uid] = state
	}
	return state
}

// ResetSession drops the in-memory turn state and the stored transcript.
func (o *Orchestrator) ResetSession(ctx context.Context, uid string) error {
	o.statesMu.Lock()
	delete(o.states, uid)
	o.statesMu.Unlock()
	o.mu.Lock()
	delete(o.locks, uid)
	o.mu.Unlock()
	return o.memory.Clear(ctx, uid)
}

func (o *Orchestrator) notify(ctx context.Context, email string, reservation *store.Reservation) {
	if o.notifier == nil || email == "" || reservation == nil {
		return
	}
	if err := o.notifier.ConfirmReservation(ctx, email, reservation); err != nil {
		slog.Warn("dialogue: confirmation delivery failed", "email", email, "error", err)
	}
}

func (o *Orchestrator) countBooking(outcome string) {
	if o.metrics != nil {
		o.metrics.CountBookingOutcome(outcome)
	}
}

func (o *Orchestrator) countTokens(stats *llm.CallStats) {
	if o.metrics != nil && stats != nil {
		o.metrics.CountTokens(stats.PromptTokens, stats.CompletionTokens)
	}
}

func encodeIntent(intent *extractor.Intent) *string {
	if intent == nil {
		return nil
	}
	raw, err := json.Marshal(intent)
	if err != nil {
		return nil
	}
	s := string(raw)
	return &s
}

var slotQuestions = map[string]string{
	extractor.SlotName:    "What name should the booking be under?",
	extractor.SlotEmail:   "What email address should I use for the confirmation?",
	extractor.SlotPhone:   "What phone number can we reach you on?",
	extractor.SlotService: "What kind of appointment would you like, for example a consultation or a demo?",
	extractor.SlotDate:    "Which date would you like?",
	extractor.SlotTime:    "What time works for you?",
}

func clarificationFor(slot string) string {
	if q, ok := slotQuestions[slot]; ok {
		return q
	}
	return fmt.Sprintf("Could you tell me the %s?", slot)
}

func formatAlternatives(slots []time.Time) string {
	parts := make([]string, 0, len(slots))
	for _, t := range slots {
		parts = append(parts, t.Format("2006-01-02 15:04"))
	}
	return strings.Join(parts, ", ")
}

func formatCandidates(reservations []*store.Reservation, loc *time.Location) string {
	parts := make([]string, 0, len(reservations))
	for _, r := range reservations {
		parts = append(parts, fmt.Sprintf("%s on %s",
			r.ServiceType, time.Unix(r.StartTs, 0).In(loc).Format("2006-01-02 15:04")))
	}
	return strings.Join(parts, "; ")
}
