package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/pdfbot/internal/metrics"
	"github.com/harun/pdfbot/internal/observability"
	"github.com/harun/pdfbot/internal/tracing"
	"github.com/harun/pdfbot/pkg/scratch"
	"github.com/harun/pdfbot/pkg/session"
)

const tracerName = "pdfbot.dispatcher"

// State is the position of a conversation in the operation flow
type State string

const (
	StateAwaitingSelection State = "awaiting_selection"
	StateAwaitingInput     State = "awaiting_input"
	StateCollecting        State = "collecting"
	StateAwaitingParameter State = "awaiting_parameter"
	StateProcessing        State = "processing"
)

// Upload is an artifact announced by the transport. Fetch is only called
// once the upload passed the operation, kind and size checks.
type Upload struct {
	Kind UploadKind
	Name string
	// Size is the size declared by the transport, 0 when unknown
	Size  int64
	Fetch func(ctx context.Context) (io.ReadCloser, error)
}

// Notifier delivers an interim message, such as a progress note, while an
// event is still being handled.
type Notifier func(ctx context.Context, conversationID, text string)

// SessionView is a read-only summary of one conversation
type SessionView struct {
	ConversationID string    `json:"conversation_id"`
	Operation      string    `json:"operation"`
	State          State     `json:"state"`
	PendingFiles   int       `json:"pending_files"`
	HoldsFile      bool      `json:"holds_file"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithMetrics records operation metrics in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithAudit records every finished operation in a
func WithAudit(a *observability.AuditLogger) Option {
	return func(d *Dispatcher) {
		d.audit = a
	}
}

// WithNotifier sets the sink for progress messages
func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) {
		d.notify = n
	}
}

// Dispatcher drives the per-conversation operation flow. Events of one
// conversation must not be delivered concurrently; different conversations
// may be handled in parallel.
type Dispatcher struct {
	store       session.Store
	files       *scratch.Store
	transformer Transformer
	metrics     *metrics.Metrics
	audit       *observability.AuditLogger
	notify      Notifier
	logger      zerolog.Logger

	inflight *inflight
}

// New creates a dispatcher over store, keeping uploads and outputs in files
func New(store session.Store, files *scratch.Store, transformer Transformer, logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		files:       files,
		transformer: transformer,
		inflight:    newInflight(),
		logger:      logger.With().Str("component", "dispatcher").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// handle runs one event inside a span and turns its error into a reply
func (d *Dispatcher) handle(ctx context.Context, conversationID, event string, fn func(context.Context, zerolog.Logger) (Reply, error)) Reply {
	// Marked before the first store access so Reap never expires the
	// session under a running event.
	d.inflight.begin(conversationID)
	defer d.inflight.end(conversationID)

	ctx = tracing.NewEventContext(ctx, conversationID, event)
	ctx, span := tracing.StartSpan(ctx, tracerName, "dispatcher."+event,
		attribute.String("conversation", conversationID),
	)
	logger := tracing.LoggerFromContext(ctx, d.logger)

	reply, err := fn(ctx, logger)
	d.metrics.SetActiveSessions(d.store.Len())
	if err == nil {
		tracing.EndSpan(span, nil)
		return reply
	}

	var de *Error
	if errors.As(err, &de) && de.Kind == KindUserInput {
		d.metrics.RecordUserError(de.Reason)
		span.SetAttributes(attribute.String("rejected", de.Reason))
		tracing.EndSpan(span, nil)
		logger.Debug().Str("reason", de.Reason).Msg("Input rejected")
	} else {
		tracing.EndSpan(span, err)
		logger.Error().Err(err).Msg("Event failed")
	}
	return ReplyFor(err)
}

// SelectOperation records the chosen operation, discarding anything buffered
// for the previous one. Selecting the current operation again also resets it.
func (d *Dispatcher) SelectOperation(ctx context.Context, conversationID, operationID string) Reply {
	return d.handle(ctx, conversationID, "select_operation", func(ctx context.Context, logger zerolog.Logger) (Reply, error) {
		op, err := session.ParseOperation(operationID)
		if err != nil {
			return Reply{}, &Error{
				Kind:    KindUserInput,
				Reason:  ReasonUnknownOperation,
				Message: msgUnknownOperation,
				Err:     err,
			}
		}

		dropped := d.store.SetOperation(conversationID, op)
		d.files.Remove(dropped...)

		logger.Info().
			Str("operation", op.String()).
			Int("discarded", len(dropped)).
			Msg("Operation selected")

		return prompt(handlers[op].prompt), nil
	})
}

// ReceiveFile handles an uploaded artifact
func (d *Dispatcher) ReceiveFile(ctx context.Context, conversationID string, up Upload) Reply {
	return d.handle(ctx, conversationID, "receive_file", func(ctx context.Context, logger zerolog.Logger) (Reply, error) {
		op := d.store.Get(conversationID).Operation
		if op == session.OpNone {
			return Reply{}, userError(op, ReasonNoOperation, msgChooseFirst)
		}

		h := handlers[op]
		if up.Kind != h.accepts {
			return Reply{}, userError(op, ReasonWrongKind, h.wrongKind)
		}
		if d.files.Exceeds(up.Size) {
			return Reply{}, d.tooLarge(op)
		}

		path, err := d.fetch(ctx, conversationID, up)
		if err != nil {
			d.metrics.RecordUpload(string(up.Kind), false)
			if errors.Is(err, scratch.ErrTooLarge) {
				return Reply{}, d.tooLarge(op)
			}
			return Reply{}, transferError(op, err)
		}
		d.metrics.RecordUpload(string(up.Kind), true)

		switch {
		case op.Batch():
			n := d.store.AppendPending(conversationID, path)
			logger.Debug().Int("buffered", n).Msg("Upload buffered")
			return prompt(h.addedText(n)), nil

		case op.Parameterized():
			if replaced := d.store.SetSingleFile(conversationID, path); replaced != "" {
				d.files.Remove(replaced)
			}
			return prompt(h.paramPrompt), nil

		default:
			if replaced := d.store.SetSingleFile(conversationID, path); replaced != "" {
				d.files.Remove(replaced)
			}
			return d.process(ctx, logger, conversationID, op, "", msgFileFailed)
		}
	})
}

// ReceiveText handles a text message. It is the parameter of a watermark or
// protect operation once the PDF has been received, a hint otherwise.
func (d *Dispatcher) ReceiveText(ctx context.Context, conversationID, text string) Reply {
	return d.handle(ctx, conversationID, "receive_text", func(ctx context.Context, logger zerolog.Logger) (Reply, error) {
		s := d.store.Get(conversationID)
		if stateOf(s) != StateAwaitingParameter {
			return hint(s), nil
		}

		if strings.TrimSpace(text) == "" {
			return Reply{}, userError(s.Operation, ReasonEmptyParameter, handlers[s.Operation].paramEmpty)
		}
		return d.process(ctx, logger, conversationID, s.Operation, text, msgTextFailed)
	})
}

// ReceiveFinishSignal flushes the collected batch through its transform
func (d *Dispatcher) ReceiveFinishSignal(ctx context.Context, conversationID string) Reply {
	return d.handle(ctx, conversationID, "finish", func(ctx context.Context, logger zerolog.Logger) (Reply, error) {
		s := d.store.Get(conversationID)
		if !s.Operation.Batch() {
			if s.Operation == session.OpNone {
				return hint(s), nil
			}
			return prompt(msgFinishNotBatch), nil
		}

		if len(s.PendingFiles) == 0 {
			return Reply{}, userError(s.Operation, ReasonEmptyBatch, handlers[s.Operation].empty)
		}
		return d.process(ctx, logger, conversationID, s.Operation, "", msgBatchFailed)
	})
}

// Cancel abandons the current operation and deletes its buffered files
func (d *Dispatcher) Cancel(ctx context.Context, conversationID string) Reply {
	return d.handle(ctx, conversationID, "cancel", func(ctx context.Context, logger zerolog.Logger) (Reply, error) {
		op := d.store.Get(conversationID).Operation
		dropped := d.store.Clear(conversationID)
		d.files.Remove(dropped...)

		if op == session.OpNone && len(dropped) == 0 {
			return prompt(msgNothingToCancel), nil
		}

		logger.Info().
			Str("operation", op.String()).
			Int("discarded", len(dropped)).
			Msg("Operation cancelled")
		return prompt(msgCancelled), nil
	})
}

// process takes the inputs out of the session and runs the transform of op.
// Inputs and any partial output are deleted before it returns; the output
// of a successful run is deleted by Reply.Release.
func (d *Dispatcher) process(ctx context.Context, logger zerolog.Logger, conversationID string, op session.Operation, param, fallback string) (Reply, error) {
	h := handlers[op]
	// Inputs stay referenced for the sweeper once they leave the session
	held := d.store.Get(conversationID).Files()
	d.inflight.hold(conversationID, held...)
	inputs := d.store.Clear(conversationID)
	defer func() {
		d.files.Remove(inputs...)
		d.inflight.drop(inputs...)
		d.inflight.drop(held...)
	}()

	fail := func(err error) (Reply, error) {
		return Reply{}, &Error{Kind: h.failureKind, Op: op, Message: h.failureText(fallback), Err: err}
	}

	if len(inputs) == 0 {
		return fail(errors.New("no input files"))
	}

	out, err := d.files.OutputPath(conversationID, ".pdf")
	if err != nil {
		return fail(err)
	}
	d.inflight.hold(conversationID, out)

	if d.notify != nil && h.progress != "" {
		d.notify(ctx, conversationID, h.progress)
	}

	start := time.Now()
	err = d.transform(ctx, conversationID, op, h, inputs, param, out)
	elapsed := time.Since(start)
	d.metrics.RecordOperation(string(op), elapsed, err == nil)
	d.audit.RecordOperation(ctx, conversationID, string(op), len(inputs), elapsed, err == nil)

	if err != nil {
		d.files.Remove(out)
		d.inflight.drop(out)
		return fail(err)
	}

	logger.Info().
		Str("operation", op.String()).
		Int("inputs", len(inputs)).
		Dur("duration", elapsed).
		Msg("Operation completed")

	return Reply{
		Kind:     ReplyResult,
		Text:     msgDone,
		FilePath: out,
		FileName: h.output,
		release: sync.OnceFunc(func() {
			d.files.Remove(out)
			d.inflight.drop(out)
		}),
	}, nil
}

func (d *Dispatcher) transform(ctx context.Context, conversationID string, op session.Operation, h handler, inputs []string, param, out string) (err error) {
	d.inflight.startTransform(conversationID, op)
	defer d.inflight.endTransform(conversationID)

	ctx, span := tracing.StartSpan(ctx, tracerName, "dispatcher.transform",
		attribute.String("operation", string(op)),
		attribute.Int("inputs", len(inputs)),
	)
	defer func() { tracing.EndSpan(span, err) }()

	return h.run(ctx, d.transformer, inputs, param, out)
}

// fetch downloads the upload into the conversation's scratch directory
func (d *Dispatcher) fetch(ctx context.Context, conversationID string, up Upload) (string, error) {
	if up.Fetch == nil {
		return "", errors.New("upload has no source")
	}

	rc, err := up.Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch upload: %w", err)
	}
	defer rc.Close()

	name := up.Name
	if name == "" && up.Kind == KindImage {
		name = "image.jpg"
	}
	return d.files.Save(conversationID, name, rc)
}

func (d *Dispatcher) tooLarge(op session.Operation) *Error {
	return userError(op, ReasonTooLarge, fmt.Sprintf(msgTooLarge, d.files.MaxSizeHuman()))
}

// hint answers an event that has no meaning in the current state
func hint(s session.Session) Reply {
	if s.Operation == session.OpNone {
		return Reply{Kind: ReplyPrompt, Text: msgChooseFirst, Menu: true}
	}
	return prompt(handlers[s.Operation].prompt)
}

func stateOf(s session.Session) State {
	switch {
	case s.Operation == session.OpNone:
		return StateAwaitingSelection
	case s.Operation.Batch():
		return StateCollecting
	case s.Operation.Parameterized() && s.SingleFile != "":
		return StateAwaitingParameter
	default:
		return StateAwaitingInput
	}
}

// State reports where conversationID is in the flow
func (d *Dispatcher) State(conversationID string) State {
	if d.inflight.transforming(conversationID) {
		return StateProcessing
	}
	return stateOf(d.store.Get(conversationID))
}

// Sessions summarizes every conversation held in memory
func (d *Dispatcher) Sessions() []SessionView {
	snapshot := d.store.Snapshot()
	views := make([]SessionView, 0, len(snapshot))
	for _, s := range snapshot {
		state := stateOf(s)
		if d.inflight.transforming(s.ConversationID) {
			state = StateProcessing
		}
		views = append(views, SessionView{
			ConversationID: s.ConversationID,
			Operation:      s.Operation.String(),
			State:          state,
			PendingFiles:   len(s.PendingFiles),
			HoldsFile:      s.SingleFile != "",
			UpdatedAt:      s.UpdatedAt,
		})
	}
	return views
}

// Referenced returns every file still in use: files held by a session,
// inputs of a running transform and results not yet released.
func (d *Dispatcher) Referenced() map[string]bool {
	refs := make(map[string]bool)
	for _, s := range d.store.Snapshot() {
		for _, f := range s.Files() {
			refs[f] = true
		}
	}
	// Read after the sessions: process holds inputs before clearing them
	d.inflight.held(refs)
	return refs
}

// Reap drops sessions idle for longer than idle and deletes their files.
// Conversations with an event being handled are skipped. It returns the
// number of sessions removed.
func (d *Dispatcher) Reap(idle time.Duration) int {
	expired := d.store.Expire(idle, d.inflight.active)
	for conversationID, files := range expired {
		d.files.Remove(files...)
		d.logger.Debug().
			Str("conversation", conversationID).
			Int("files", len(files)).
			Msg("Idle session expired")
	}
	d.metrics.SetActiveSessions(d.store.Len())
	return len(expired)
}
