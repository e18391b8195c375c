// Package runtime wires the relay together: the session registry, the frame
// router, the broadcast engine and the supervised pool of relay workers.
package runtime

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"polyglot-chat/assistant"
	"polyglot-chat/contract"
	"polyglot-chat/domain"
	"polyglot-chat/errors"
	"polyglot-chat/moderation"
	"polyglot-chat/observability"
	"polyglot-chat/runtime/workers"
	"strings"
	"sync"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/cespare/xxhash/v2"
)

//go:embed censored/*
var censoredFolder embed.FS

// Plain-language notices written to clients.
const (
	NotJoinedMessage    = "Please join the room before sending messages."
	InvalidNameMessage  = "Please choose a name between 1 and 64 characters."
	InvalidLangMessage  = "This language code is not supported."
	TextTooLongMessage  = "Your message is too long and was not sent."
	joinedNoticeFormat  = "%s joined (%s)"
	leftNoticeFormat    = "%s left"
	relayQueueName          = "relay-%d"
	assistantQueueName      = "assistant"
	defaultRelayWorkers     = 4
	defaultAssistantWorkers = 2
)

var (
	_ contract.IOrchestrator    = (*Orchestrator)(nil)
	_ contract.FrameHandler     = (*Orchestrator)(nil)
	_ contract.CommandProcessor = (*Orchestrator)(nil)
)

type Options struct {
	NumWorkers              int
	BufferSize              int
	DefaultLanguage         string
	MaxContentLength        int
	DetectSourceLanguage    bool
	EchoToSender            bool
	MaxParallelTranslations int
	ModerationEnabled       bool
	CharReplacement         rune
	AssistantPrefixes       []string
	AssistantWorkers        int
	MetricInterval          time.Duration
}

type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	opts       Options
	supervisor contract.ISupervisor
	registry   contract.ISessionRegistry
	monitoring *observability.MonitoringManager
	sampler    workers.ProcessSampler
	router     *Router
	engine     *BroadcastEngine
	bridge     *assistant.Bridge
	trigger    assistant.Trigger
	shards     []chan domain.RelayCommand
	questions  chan domain.RelayCommand
	started    bool
}

// NewOrchestrator builds the relay. A nil answerer disables the assistant,
// its prefixes are then relayed as ordinary chat.
func NewOrchestrator(
	log *slog.Logger,
	supervisor contract.ISupervisor,
	registry contract.ISessionRegistry,
	translator contract.Translator,
	answerer contract.Answerer,
	monitoring *observability.MonitoringManager,
	sampler workers.ProcessSampler,
	assistantName string,
	assistantTimeout time.Duration,
	opts Options,
) (*Orchestrator, error) {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultRelayWorkers
	}
	if opts.AssistantWorkers <= 0 {
		opts.AssistantWorkers = defaultAssistantWorkers
	}
	if opts.MetricInterval <= 0 {
		opts.MetricInterval = time.Second
	}

	var moderator *moderation.Moderator
	if opts.ModerationEnabled {
		var err error
		if moderator, err = prepareModeration(log, opts.CharReplacement); err != nil {
			return nil, err
		}
	}

	engine := NewBroadcastEngine(log, registry, translator, moderator, monitoring,
		opts.EchoToSender, opts.MaxParallelTranslations)

	o := &Orchestrator{
		log:        log,
		opts:       opts,
		supervisor: supervisor,
		registry:   registry,
		monitoring: monitoring,
		sampler:    sampler,
		router:     NewRouter(opts.DefaultLanguage, opts.MaxContentLength),
		engine:     engine,
		trigger:    assistant.NewTrigger(opts.AssistantPrefixes),
		shards:     make([]chan domain.RelayCommand, opts.NumWorkers),
	}
	if answerer != nil {
		o.bridge = assistant.NewBridge(log, answerer, engine, monitoring, assistantName, assistantTimeout)
		o.questions = make(chan domain.RelayCommand, opts.BufferSize)
	}
	for i := range o.shards {
		o.shards[i] = make(chan domain.RelayCommand, opts.BufferSize)
	}
	return o, nil
}

// prepareModeration loads the embedded word lists and builds the Aho-Corasick automaton.
func prepareModeration(log *slog.Logger, charReplacement rune) (*moderation.Moderator, error) {
	data, err := NewCensoredLoader(censoredFolder).LoadAll("censored")
	if err != nil {
		return nil, err
	}
	log.Info("Censored word lists loaded",
		"languages", strings.Join(data.Languages, ","),
		"words", len(data.Words))
	return moderation.NewModerator(data.Words, charReplacement, log)
}

// HandleFrame processes one raw client frame. Protocol errors are logged and
// dropped, only errors that must close the connection are returned.
func (o *Orchestrator) HandleFrame(ctx context.Context, sink domain.Sink, raw []byte) error {
	o.monitoring.IncrFramesReceived()
	err := o.router.Route(ctx, sink, raw, o)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.ErrEmptyMessage):
		o.log.Debug("Empty message ignored", "handle", sink.Handle())
		return nil
	case errors.KindOf(err) == errors.KindProtocol:
		o.monitoring.IncrProtocolErrors()
		o.log.Warn("Frame dropped", "handle", sink.Handle(), "error", err)
		if notice, ok := protocolNotice(err); ok {
			o.notify(ctx, sink, notice)
		}
		return nil
	default:
		return err
	}
}

func (o *Orchestrator) OnJoin(ctx context.Context, sink domain.Sink, frame domain.JoinFrame) error {
	p, err := o.registry.Register(sink.Handle(), frame.Name, frame.Lang, sink)
	if err != nil {
		o.log.Error("Join refused", "handle", sink.Handle(), "error", err)
		return err
	}
	// The connection may have closed, and left, while the join was in flight.
	if !sink.Open() {
		o.registry.Unregister(p.Handle)
		o.log.Debug("Join dropped, connection already closed", "handle", p.Handle)
		return nil
	}
	o.monitoring.IncrJoins()
	o.log.Info("Participant joined", "handle", p.Handle, "name", p.Name, "lang", p.Lang)
	o.engine.Broadcast(ctx, "", domain.NewSystemFrame(fmt.Sprintf(joinedNoticeFormat, p.Name, p.Lang)))
	return nil
}

func (o *Orchestrator) OnMessage(ctx context.Context, sink domain.Sink, frame domain.MessageFrame) error {
	sender, ok := o.registry.Find(sink.Handle())
	if !ok {
		o.log.Debug("Message before join", "handle", sink.Handle())
		o.notify(ctx, sink, NotJoinedMessage)
		return nil
	}
	msg := domain.NewChatMessage(sender, frame.Text, o.sourceLanguage(sender, frame))
	return o.Dispatch(ctx, domain.RelayCommand{Message: msg})
}

// Dispatch queues cmd on the shard owning its sender, waiting while the shard is full.
func (o *Orchestrator) Dispatch(ctx context.Context, cmd domain.RelayCommand) error {
	shard := o.shards[xxhash.Sum64String(string(cmd.SenderHandle()))%uint64(len(o.shards))]
	select {
	case shard <- cmd:
		return nil
	case <-ctx.Done():
		return errors.Connection("dispatch", ctx.Err())
	}
}

// Process runs on a relay worker: questions are handed to the assistant
// workers, everything else is relayed to the room.
func (o *Orchestrator) Process(ctx context.Context, cmd domain.RelayCommand) {
	if o.bridge != nil {
		if _, ok := o.trigger.Match(cmd.Message.Text); ok {
			o.enqueueQuestion(ctx, cmd)
			return
		}
	}
	o.engine.Relay(ctx, cmd.Message)
}

// enqueueQuestion never waits: a slow assistant must not hold a relay shard.
// When every assistant worker is busy and the queue is full, the asker is told.
func (o *Orchestrator) enqueueQuestion(ctx context.Context, cmd domain.RelayCommand) {
	select {
	case o.questions <- cmd:
	default:
		asker := cmd.Message.Sender
		o.monitoring.IncrAssistantFailures()
		o.log.Warn("Assistant queue full, question dropped", "handle", asker.Handle)
		if err := o.engine.Deliver(ctx, asker, domain.NewSystemFrame(assistant.UnavailableMessage)); err != nil {
			o.log.Debug("Notice not delivered", "handle", asker.Handle, "error", err)
		}
	}
}

// answer runs on an assistant worker.
func (o *Orchestrator) answer(ctx context.Context, cmd domain.RelayCommand) {
	question, ok := o.trigger.Match(cmd.Message.Text)
	if !ok {
		return
	}
	if err := o.bridge.Ask(ctx, cmd.Message.Sender, question); err != nil {
		o.log.Debug("Assistant question not answered", "handle", cmd.Message.Sender.Handle, "error", err)
	}
}

// processorFunc adapts a function to contract.CommandProcessor.
type processorFunc func(ctx context.Context, cmd domain.RelayCommand)

func (f processorFunc) Process(ctx context.Context, cmd domain.RelayCommand) { f(ctx, cmd) }

// Leave removes the participant bound to handle. Only the first call for a
// handle announces the departure.
func (o *Orchestrator) Leave(ctx context.Context, handle domain.Handle) {
	p, removed := o.registry.Unregister(handle)
	if !removed {
		return
	}
	o.monitoring.IncrLeaves()
	o.log.Info("Participant left", "handle", p.Handle, "name", p.Name)
	o.engine.Broadcast(ctx, handle, domain.NewSystemFrame(fmt.Sprintf(leftNoticeFormat, p.Name)))
}

// Start registers the relay pool, the assistant pool and the telemetry workers, then blocks
// until the supervisor stops.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already started")
	}
	o.started = true

	queues := make([]workers.NamedChannel, 0, len(o.shards))
	for i, shard := range o.shards {
		o.supervisor.Add(workers.NewRelayWorker(i, shard, o, o.log))
		queues = append(queues, workers.NamedChannel{Name: fmt.Sprintf(relayQueueName, i), Channel: shard})
	}
	if o.questions != nil {
		for i := range o.opts.AssistantWorkers {
			o.supervisor.Add(workers.NewRelayWorker(len(o.shards)+i, o.questions, processorFunc(o.answer), o.log))
		}
		queues = append(queues, workers.NamedChannel{Name: assistantQueueName, Channel: o.questions})
	}
	o.supervisor.Add(
		workers.NewTelemetryWorker(o.log, o.opts.MetricInterval, o.monitoring, o.registry, o.sampler),
		workers.NewChannelCapacityWorker(o.log, queues, o.monitoring, o.opts.MetricInterval),
	)
	o.mu.Unlock()

	o.log.Info("Starting relay workers", "workers", len(o.shards))
	o.supervisor.Run(ctx)
	return nil
}

func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

// Participants returns the joined participants in join order.
func (o *Orchestrator) Participants() []domain.Participant {
	return o.registry.List()
}

func (o *Orchestrator) sourceLanguage(sender domain.Participant, frame domain.MessageFrame) string {
	if frame.Lang != "" {
		return frame.Lang
	}
	if o.opts.DetectSourceLanguage {
		info := whatlanggo.Detect(frame.Text)
		if code := info.Lang.Iso6391(); info.IsReliable() && code != "" {
			return code
		}
	}
	return sender.Lang
}

func (o *Orchestrator) notify(ctx context.Context, sink domain.Sink, msg string) {
	if err := sink.Send(ctx, domain.NewSystemFrame(msg)); err != nil {
		o.log.Debug("Notice not delivered", "handle", sink.Handle(), "error", err)
	}
}

// protocolNotice explains a rejected frame to its sender when there is
// something the user can fix. Malformed or unknown frames are dropped quietly.
func protocolNotice(err error) (string, bool) {
	switch {
	case errors.Is(err, errors.ErrInvalidName):
		return InvalidNameMessage, true
	case errors.Is(err, errors.ErrInvalidLang):
		return InvalidLangMessage, true
	case errors.Is(err, errors.ErrTextTooLong):
		return TextTooLongMessage, true
	default:
		return "", false
	}
}
