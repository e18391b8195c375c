package assistant

import (
	"context"
	"log/slog"
	"polyglot-chat/errors"
	"polyglot-chat/mocks"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestChain_Falls_Back_To_Next_Answerer(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	local := mocks.NewMockAnswerer(ctrl)
	remote := mocks.NewMockAnswerer(ctrl)

	// Given the local model is down
	local.EXPECT().
		Answer(gomock.Any(), "what is Go?", "en").
		Return("", errors.ErrServiceUnavailable)
	remote.EXPECT().
		Answer(gomock.Any(), "what is Go?", "en").
		Return("A programming language.", nil)

	chain := NewChain(logs.GetLoggerFromLevel(slog.LevelDebug), local, remote)

	// When asking
	answer, err := chain.Answer(context.Background(), "what is Go?", "en")

	// Then the remote answers
	req.NoError(err)
	req.Equal("A programming language.", answer)
}

func TestChain_First_Answer_Wins(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	local := mocks.NewMockAnswerer(ctrl)
	remote := mocks.NewMockAnswerer(ctrl)

	local.EXPECT().
		Answer(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("Local answer, good enough.", nil)

	answer, err := NewChain(logs.GetLoggerFromLevel(slog.LevelDebug), local, remote).
		Answer(context.Background(), "q?", "en")

	req.NoError(err)
	req.Equal("Local answer, good enough.", answer)
}

func TestChain_Every_Answerer_Failing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	local := mocks.NewMockAnswerer(ctrl)

	local.EXPECT().
		Answer(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", errors.ErrServiceUnavailable)

	_, err := NewChain(logs.GetLoggerFromLevel(slog.LevelDebug), local).Answer(context.Background(), "q?", "en")

	req.ErrorIs(err, errors.ErrServiceUnavailable)
}

func TestChain_Stops_When_Deadline_Passes(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	local := mocks.NewMockAnswerer(ctrl)
	remote := mocks.NewMockAnswerer(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	local.EXPECT().
		Answer(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string) (string, error) {
			cancel()
			return "", context.Canceled
		})

	// Then the remote is never asked
	_, err := NewChain(logs.GetLoggerFromLevel(slog.LevelDebug), local, remote).Answer(ctx, "q?", "en")

	req.ErrorIs(err, errors.ErrTimeout)
}
