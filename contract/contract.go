//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"polyglot-chat/domain"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type ISessionRegistry interface {
	Register(handle domain.Handle, name, lang string, sink domain.Sink) (domain.Participant, error)
	Unregister(handle domain.Handle) (domain.Participant, bool)
	ListOthers(excluding domain.Handle) []domain.Participant
	List() []domain.Participant
	Find(handle domain.Handle) (domain.Participant, bool)
	SetLanguage(handle domain.Handle, lang string) error
	Len() int
}

// Translator turns text from a source language into a target language.
// Implemented by external backends and by the gateway in front of them.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Answerer produces the assistant's answer in the target language.
type Answerer interface {
	Answer(ctx context.Context, question, targetLang string) (string, error)
}

type TranslationCache interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Deliverer writes a frame to a single participant.
type Deliverer interface {
	Deliver(ctx context.Context, to domain.Participant, frame domain.OutboundFrame) error
}

type CommandProcessor interface {
	Process(ctx context.Context, cmd domain.RelayCommand)
}

type FrameHandler interface {
	OnJoin(ctx context.Context, sink domain.Sink, frame domain.JoinFrame) error
	OnMessage(ctx context.Context, sink domain.Sink, frame domain.MessageFrame) error
}

type IOrchestrator interface {
	HandleFrame(ctx context.Context, sink domain.Sink, raw []byte) error
	Leave(ctx context.Context, handle domain.Handle)
	Start(ctx context.Context) error
	Stop()
}
