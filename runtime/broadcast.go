package runtime

import (
	"context"
	"log/slog"
	"polyglot-chat/contract"
	"polyglot-chat/domain"
	"polyglot-chat/moderation"
	"polyglot-chat/observability"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var _ contract.Deliverer = (*BroadcastEngine)(nil)

// RelayReport summarizes one relay for logs and tests.
// Targets lists the distinct output languages in first-seen join order.
type RelayReport struct {
	MessageID  uuid.UUID
	Recipients int
	Targets    []string
	Calls      int
	Degraded   []string
	Delivered  int
	Failed     []domain.Handle
}

// translation is the outcome for one target language group.
type translation struct {
	text     string
	toLang   string
	degraded bool
}

// BroadcastEngine fans a chat message out to every other participant,
// translated once per distinct output language.
type BroadcastEngine struct {
	log          *slog.Logger
	registry     contract.ISessionRegistry
	translator   contract.Translator
	moderator    *moderation.Moderator
	monitoring   *observability.MonitoringManager
	echoToSender bool
	maxParallel  int
}

// NewBroadcastEngine builds an engine. moderator may be nil to disable censoring.
func NewBroadcastEngine(
	log *slog.Logger,
	registry contract.ISessionRegistry,
	translator contract.Translator,
	moderator *moderation.Moderator,
	monitoring *observability.MonitoringManager,
	echoToSender bool,
	maxParallel int,
) *BroadcastEngine {
	return &BroadcastEngine{
		log:          log,
		registry:     registry,
		translator:   translator,
		moderator:    moderator,
		monitoring:   monitoring,
		echoToSender: echoToSender,
		maxParallel:  maxParallel,
	}
}

// Relay delivers msg to its recipients in join order. A failed translation only
// degrades its own language group, a failed write only loses its own recipient.
func (e *BroadcastEngine) Relay(ctx context.Context, msg domain.ChatMessage) RelayReport {
	report := RelayReport{MessageID: msg.ID}
	recipients := e.recipients(msg.Sender.Handle)
	report.Recipients = len(recipients)
	if len(recipients) == 0 {
		return report
	}

	text := e.censor(msg)
	report.Targets = lo.Uniq(lo.Map(recipients, func(p domain.Participant, _ int) string {
		return p.Lang
	}))
	translations, calls := e.translateAll(ctx, text, msg.SourceLang, report.Targets)
	report.Calls = calls

	for _, target := range report.Targets {
		if t := translations[target]; t.degraded {
			report.Degraded = append(report.Degraded, target)
		}
	}

	for _, recipient := range recipients {
		t := translations[recipient.Lang]
		frame := domain.NewChatFrame(msg.Sender.Name, text, msg.SourceLang, t.text, t.toLang)
		if err := e.Deliver(ctx, recipient, frame); err != nil {
			report.Failed = append(report.Failed, recipient.Handle)
			continue
		}
		report.Delivered++
	}

	e.monitoring.IncrRelays()
	e.log.Debug("Message relayed",
		"message_id", msg.ID,
		"from", msg.Sender.Handle,
		"recipients", report.Recipients,
		"targets", report.Targets,
		"translation_calls", report.Calls,
		"degraded", report.Degraded)
	return report
}

// Broadcast sends frame to every participant except the given handle, in join order.
// An empty handle reaches everyone. It returns how many writes succeeded.
func (e *BroadcastEngine) Broadcast(ctx context.Context, except domain.Handle, frame domain.OutboundFrame) int {
	delivered := 0
	for _, p := range e.registry.List() {
		if except != "" && p.Handle == except {
			continue
		}
		if err := e.Deliver(ctx, p, frame); err == nil {
			delivered++
		}
	}
	return delivered
}

// Deliver writes a single frame to one participant.
func (e *BroadcastEngine) Deliver(ctx context.Context, to domain.Participant, frame domain.OutboundFrame) error {
	if err := to.Send(ctx, frame); err != nil {
		e.monitoring.IncrDeliveryFailures()
		e.log.Debug("Frame not delivered", "handle", to.Handle, "type", frame.FrameType(), "error", err)
		return err
	}
	return nil
}

func (e *BroadcastEngine) recipients(sender domain.Handle) []domain.Participant {
	if e.echoToSender {
		return e.registry.List()
	}
	return e.registry.ListOthers(sender)
}

func (e *BroadcastEngine) censor(msg domain.ChatMessage) string {
	if e.moderator == nil {
		return msg.Text
	}
	censored, found := e.moderator.Censor(msg.Text)
	if len(found) > 0 {
		e.monitoring.IncrCensoredMessages()
		e.log.Debug("Message censored", "from", msg.Sender.Handle, "words", len(found))
	}
	return censored
}

// translateAll performs at most one translation per target and never fails.
// Translations run detached from ctx cancellation, a closing sender must not
// starve the other recipients.
func (e *BroadcastEngine) translateAll(ctx context.Context, text, source string, targets []string) (map[string]translation, int) {
	ctx = context.WithoutCancel(ctx)
	results := make([]translation, len(targets))
	calls := 0

	var g errgroup.Group
	if e.maxParallel > 0 {
		g.SetLimit(e.maxParallel)
	}
	for i, target := range targets {
		if target == source {
			results[i] = translation{text: text, toLang: target}
			continue
		}
		calls++
		g.Go(func() error {
			translated, err := e.translator.Translate(ctx, text, source, target)
			if err != nil {
				e.monitoring.IncrDegradations()
				e.log.Warn("Translation degraded to original text",
					"from", source, "to", target, "error", err)
				results[i] = translation{text: text, toLang: source, degraded: true}
				return nil
			}
			results[i] = translation{text: translated, toLang: target}
			return nil
		})
	}
	_ = g.Wait()

	byTarget := make(map[string]translation, len(targets))
	for i, target := range targets {
		byTarget[target] = results[i]
	}
	return byTarget, calls
}
