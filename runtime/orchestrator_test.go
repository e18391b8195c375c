package runtime

import (
	"context"
	"log/slog"
	"polyglot-chat/assistant"
	"polyglot-chat/domain"
	"polyglot-chat/errors"
	"polyglot-chat/mocks"
	"polyglot-chat/observability"
	"polyglot-chat/runtime/workers"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type orchestratorFixture struct {
	orchestrator *Orchestrator
	registry     *Registry
	translator   *mocks.MockTranslator
	answerer     *mocks.MockAnswerer
	monitoring   *observability.MonitoringManager
}

func newOrchestratorFixture(t *testing.T, opts Options) *orchestratorFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	translator := mocks.NewMockTranslator(ctrl)
	answerer := mocks.NewMockAnswerer(ctrl)
	monitoring := observability.NewMonitoringManager(log)
	if opts.BufferSize == 0 {
		opts.BufferSize = 16
	}
	orchestrator, err := NewOrchestrator(log, workers.NewSupervisor(log, 0), registry, translator, answerer,
		monitoring, nil, "", time.Second, opts)
	require.NoError(t, err)
	return &orchestratorFixture{
		orchestrator: orchestrator,
		registry:     registry,
		translator:   translator,
		answerer:     answerer,
		monitoring:   monitoring,
	}
}

func (f *orchestratorFixture) join(t *testing.T, name, lang string) *RecordingSink {
	t.Helper()
	sink := NewRecordingSink(name)
	raw := `{"type":"join","name":"` + name + `","lang":"` + lang + `"}`
	require.NoError(t, f.orchestrator.HandleFrame(context.Background(), sink, []byte(raw)))
	return sink
}

// nextCommand pops the first queued relay command, whatever its shard.
func (f *orchestratorFixture) nextCommand(t *testing.T) (domain.RelayCommand, bool) {
	t.Helper()
	for _, shard := range f.orchestrator.shards {
		select {
		case cmd := <-shard:
			return cmd, true
		default:
		}
	}
	return domain.RelayCommand{}, false
}

func TestOrchestrator_Join_Announces_To_Everyone(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, Options{})

	// Given Alice is in the room
	alice := f.join(t, "Alice", "en")

	// When Bob joins
	bob := f.join(t, "Bob", "fr")

	// Then both are told, Bob included
	req.Equal([]domain.SystemFrame{
		domain.NewSystemFrame("Alice joined (en)"),
		domain.NewSystemFrame("Bob joined (fr)"),
	}, alice.SystemFrames())
	req.Equal([]domain.SystemFrame{domain.NewSystemFrame("Bob joined (fr)")}, bob.SystemFrames())
}

func TestOrchestrator_Join_Without_Language_Defaults_To_English(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, Options{})

	sink := NewRecordingSink("zoe")
	err := f.orchestrator.HandleFrame(context.Background(), sink, []byte(`{"type":"join","name":"Zoe","lang":""}`))
	req.NoError(err)

	p, ok := f.registry.Find(sink.Handle())
	req.True(ok)
	req.Equal("en", p.Lang)
}

func TestOrchestrator_Duplicate_Join_Is_Fatal_To_The_Connection(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, Options{})
	sink := f.join(t, "Alice", "en")

	err := f.orchestrator.HandleFrame(context.Background(), sink, []byte(`{"type":"join","name":"Alice","lang":"en"}`))

	req.ErrorIs(err, errors.ErrDuplicateHandle)
	req.Equal(errors.KindRegistryInvariant, errors.KindOf(err))
	req.Equal(1, f.registry.Len())
}

func TestOrchestrator_Join_On_Closed_Connection_Is_Rolled_Back(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, Options{})
	alice := f.join(t, "Alice", "en")

	// Given a connection that closed, and left, while its join was in flight
	ghost := NewRecordingSink("ghost")
	ghost.Close()
	f.orchestrator.Leave(context.Background(), ghost.Handle())

	// When the join is finally handled
	err := f.orchestrator.HandleFrame(context.Background(), ghost, []byte(`{"type":"join","name":"Ghost","lang":"fr"}`))

	// Then it is not registered and nobody hears about it
	req.NoError(err)
	_, ok := f.registry.Find(ghost.Handle())
	req.False(ok)
	req.Equal(1, f.registry.Len())
	req.Equal([]domain.SystemFrame{domain.NewSystemFrame("Alice joined (en)")}, alice.SystemFrames())
}

func TestOrchestrator_Message_Before_Join(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, Options{})
	sink := NewRecordingSink("stranger")

	err := f.orchestrator.HandleFrame(context.Background(), sink, []byte(`{"type":"message","text":"hello","lang":"en"}`))

	req.NoError(err)
	req.Equal([]domain.SystemFrame{domain.NewSystemFrame(NotJoinedMessage)}, sink.SystemFrames())
	_, queued := f.nextCommand(t)
	req.False(queued)
}

func TestOrchestrator_Whitespace_Message_Is_Ignored(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, Options{})
	alice := f.join(t, "Alice", "en")
	bob := f.join(t, "Bob", "en")

	err := f.orchestrator.HandleFrame(context.Background(), alice, []byte(`{"type":"message","text":"   \n\t ","lang":"en"}`))

	// Then nothing is queued, nobody hears anything and it is not a protocol error
	req.NoError(err)
	_, queued := f.nextCommand(t)
	req.False(queued)
	req.Empty(bob.ChatFrames())
	req.Zero(f.monitoring.Refresh(0, observability.ProcessMetrics{}).ProtocolErrors)
}

func TestOrchestrator_Protocol_Errors_Keep_Connection_Open(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		notice []domain.SystemFrame
	}{
		{name: "Not JSON", raw: `hello`},
		{name: "Unknown type", raw: `{"type":"typing"}`},
		{name: "Invalid name", raw: `{"type":"join","name":"  ","lang":"en"}`, notice: []domain.SystemFrame{domain.NewSystemFrame(InvalidNameMessage)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newOrchestratorFixture(t, Options{})
			sink := NewRecordingSink("h-1")

			err := f.orchestrator.HandleFrame(context.Background(), sink, []byte(tt.raw))

			req.NoError(err)
			req.Equal(tt.notice, sink.SystemFrames())
			req.Equal(uint64(1), f.monitoring.Refresh(0, observability.ProcessMetrics{}).ProtocolErrors)
		})
	}
}

func TestOrchestrator_Message_Without_Language_Uses_Sender_Language(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, Options{})
	alice := f.join(t, "Alice", "hi")

	err := f.orchestrator.HandleFrame(context.Background(), alice, []byte(`{"type":"message","text":"namaste"}`))
	req.NoError(err)

	cmd, queued := f.nextCommand(t)
	req.True(queued)
	req.Equal("hi", cmd.Message.SourceLang)
	req.Equal("namaste", cmd.Message.Text)
	req.Equal(domain.Handle("Alice"), cmd.SenderHandle())
}

func TestOrchestrator_Same_Sender_Always_Uses_The_Same_Shard(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, Options{NumWorkers: 8})
	alice := f.join(t, "Alice", "en")

	for range 5 {
		req.NoError(f.orchestrator.HandleFrame(context.Background(), alice, []byte(`{"type":"message","text":"hi","lang":"en"}`)))
	}

	nonEmpty := 0
	for _, shard := range f.orchestrator.shards {
		if len(shard) > 0 {
			nonEmpty++
			req.Len(shard, 5)
		}
	}
	req.Equal(1, nonEmpty)
}

func TestOrchestrator_Leave_Announces_Once(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, Options{})
	alice := f.join(t, "Alice", "en")
	bob := f.join(t, "Bob", "en")

	// When the read and write paths both detect the disconnect
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.orchestrator.Leave(context.Background(), alice.Handle())
		}()
	}
	wg.Wait()

	// Then Bob hears about it exactly once
	req.Equal([]domain.SystemFrame{
		domain.NewSystemFrame("Bob joined (en)"),
		domain.NewSystemFrame("Alice left"),
	}, bob.SystemFrames())
	req.Equal(uint64(1), f.monitoring.Refresh(0, observability.ProcessMetrics{}).Leaves)

	// Then leaving again later is a no-op
	f.orchestrator.Leave(context.Background(), alice.Handle())
	req.Len(bob.SystemFrames(), 2)
}

func TestOrchestrator_Assistant_Answers_Asker_Only(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, Options{})
	alice := f.join(t, "Alice", "fr")
	bob := f.join(t, "Bob", "en")
	asker, _ := f.registry.Find(alice.Handle())

	f.answerer.EXPECT().
		Answer(gomock.Any(), "c'est quoi Go ?", "fr").
		Return("Go est un langage de programmation.", nil)

	// When Alice addresses the assistant
	f.orchestrator.Process(context.Background(), domain.RelayCommand{
		Message: domain.NewChatMessage(asker, "@assistant c'est quoi Go ?", "fr"),
	})
	req.Len(f.orchestrator.questions, 1)
	f.orchestrator.answer(context.Background(), <-f.orchestrator.questions)

	// Then only Alice gets the answer and the question is not relayed
	var answers []domain.AIChatFrame
	for _, frame := range alice.Frames() {
		if ai, ok := frame.(domain.AIChatFrame); ok {
			answers = append(answers, ai)
		}
	}
	req.Equal([]domain.AIChatFrame{
		domain.NewAIChatFrame("Assistant", "c'est quoi Go ?", "Go est un langage de programmation.", "fr"),
	}, answers)
	req.Empty(bob.ChatFrames())
	for _, frame := range bob.Frames() {
		_, isAI := frame.(domain.AIChatFrame)
		req.False(isAI)
	}
}

func TestOrchestrator_Pending_Answer_Does_Not_Hold_The_Room(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, Options{NumWorkers: 1})
	alice := f.join(t, "Alice", "en")
	carol := f.join(t, "Carol", "en")
	bob := f.join(t, "Bob", "fr")

	entered := make(chan struct{})
	release := make(chan struct{})
	f.answerer.EXPECT().
		Answer(gomock.Any(), "what is Go?", "en").
		DoAndReturn(func(ctx context.Context, question, lang string) (string, error) {
			close(entered)
			select {
			case <-release:
			case <-ctx.Done():
				return "", ctx.Err()
			}
			return "A programming language.", nil
		})
	f.translator.EXPECT().
		Translate(gomock.Any(), gomock.Any(), gomock.Any(), "fr").
		DoAndReturn(func(ctx context.Context, text, source, target string) (string, error) {
			return "fr:" + text, nil
		}).
		AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.orchestrator.Start(ctx) }()

	// Given Alice waiting on the assistant
	req.NoError(f.orchestrator.HandleFrame(ctx, alice, []byte(`{"type":"message","text":"@assistant what is Go?"}`)))
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		req.FailNow("assistant never asked")
	}

	// When Carol talks on the only relay shard
	req.NoError(f.orchestrator.HandleFrame(ctx, carol, []byte(`{"type":"message","text":"hello"}`)))

	// Then Bob gets Carol's message before the answer is ready
	req.Eventually(func() bool { return len(bob.ChatFrames()) == 1 }, 2*time.Second, 10*time.Millisecond)
	req.Equal("fr:hello", bob.ChatFrames()[0].TranslatedText)

	// And Alice still gets her answer once it arrives
	close(release)
	req.Eventually(func() bool {
		for _, frame := range alice.Frames() {
			if _, ok := frame.(domain.AIChatFrame); ok {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	req.NoError(<-done)
}

func TestOrchestrator_Full_Assistant_Queue_Tells_The_Asker(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, Options{BufferSize: 1})
	alice := f.join(t, "Alice", "en")
	bob := f.join(t, "Bob", "en")
	first, _ := f.registry.Find(alice.Handle())
	second, _ := f.registry.Find(bob.Handle())

	// Given one question already waiting for a free assistant worker
	f.orchestrator.Process(context.Background(), domain.RelayCommand{
		Message: domain.NewChatMessage(first, "@assistant first", "en"),
	})

	// When another question arrives
	f.orchestrator.Process(context.Background(), domain.RelayCommand{
		Message: domain.NewChatMessage(second, "/ai second", "en"),
	})

	// Then the second asker is told right away and nothing else is queued
	req.Contains(bob.SystemFrames(), domain.NewSystemFrame(assistant.UnavailableMessage))
	req.NotContains(alice.SystemFrames(), domain.NewSystemFrame(assistant.UnavailableMessage))
	req.Len(f.orchestrator.questions, 1)
}

func TestOrchestrator_Relays_Each_Sender_In_Order(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, Options{NumWorkers: 4, MetricInterval: 50 * time.Millisecond})
	alice := f.join(t, "Alice", "en")
	carol := f.join(t, "Carol", "en")
	bob := f.join(t, "Bob", "fr")

	f.translator.EXPECT().
		Translate(gomock.Any(), gomock.Any(), gomock.Any(), "fr").
		DoAndReturn(func(ctx context.Context, text, source, target string) (string, error) {
			return "fr:" + text, nil
		}).
		AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.orchestrator.Start(ctx) }()

	// When two senders talk concurrently
	texts := []string{"one", "two", "three", "four", "five"}
	var wg sync.WaitGroup
	for _, sender := range []*RecordingSink{alice, carol} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, text := range texts {
				raw := `{"type":"message","text":"` + string(sender.Handle()) + `-` + text + `","lang":"en"}`
				req.NoError(f.orchestrator.HandleFrame(ctx, sender, []byte(raw)))
			}
		}()
	}
	wg.Wait()

	// Then Bob receives every message, each sender's in the order sent
	req.Eventually(func() bool { return len(bob.ChatFrames()) == 2*len(texts) }, 2*time.Second, 10*time.Millisecond)
	perSender := make(map[string][]string)
	for _, frame := range bob.ChatFrames() {
		req.Equal("fr", frame.ToLang)
		perSender[frame.From] = append(perSender[frame.From], frame.TranslatedText)
	}
	for _, name := range []string{"Alice", "Carol"} {
		var expected []string
		for _, text := range texts {
			expected = append(expected, "fr:"+name+"-"+text)
		}
		req.Equal(expected, perSender[name])
	}

	cancel()
	req.NoError(<-done)
}

func TestOrchestrator_Start_Twice(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, Options{NumWorkers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.orchestrator.Start(ctx) }()

	req.Eventually(func() bool {
		f.orchestrator.mu.Lock()
		defer f.orchestrator.mu.Unlock()
		return f.orchestrator.started
	}, time.Second, 5*time.Millisecond)
	req.Error(f.orchestrator.Start(ctx))

	f.orchestrator.Stop()
	cancel()
	req.NoError(<-done)
}
