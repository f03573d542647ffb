package notify_test

import (
	"audio-upload/internal/adapters/eventbroker"
	"audio-upload/internal/core/domain"
	"audio-upload/internal/core/service/notify"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func event(index int) domain.ProgressEvent {
	return domain.ProgressEvent{
		Type:      domain.EventTypeChunkReceived,
		SessionID: uuid.New(),
		Index:     index,
	}
}

func TestAsyncNotifier_DeliversAndDrainsOnClose(t *testing.T) {
	// Arrange
	sink := eventbroker.NewMockNotifier()
	sink.On("Notify", mock.Anything, mock.Anything).Return(nil).Times(3)
	sink.On("Close").Return(nil).Once()
	n := notify.NewAsyncNotifier(sink, 8, slog.Default())

	// Act
	for i := 0; i < 3; i++ {
		require.NoError(t, n.Notify(context.Background(), event(i)))
	}
	err := n.Close()

	// Assert
	assert.NoError(t, err)
	sink.AssertExpectations(t)
}

func TestAsyncNotifier_DropsWhenFull(t *testing.T) {
	// Arrange
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	sink := eventbroker.NewMockNotifier()
	sink.On("Notify", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	}).Return(nil)
	sink.On("Close").Return(nil)
	n := notify.NewAsyncNotifier(sink, 1, slog.Default())

	// the first event occupies the delivery goroutine, the second fills the queue
	require.NoError(t, n.Notify(context.Background(), event(0)))
	<-started
	require.NoError(t, n.Notify(context.Background(), event(1)))

	// Act
	err := n.Notify(context.Background(), event(2))

	// Assert
	assert.ErrorIs(t, err, notify.ErrQueueFull)
	close(release)
	assert.NoError(t, n.Close())
	sink.AssertNumberOfCalls(t, "Notify", 2)
}

func TestAsyncNotifier_RejectsAfterClose(t *testing.T) {
	// Arrange
	sink := eventbroker.NewMockNotifier()
	sink.On("Close").Return(nil).Once()
	n := notify.NewAsyncNotifier(sink, 4, slog.Default())
	require.NoError(t, n.Close())

	// Act
	err := n.Notify(context.Background(), event(0))

	// Assert
	assert.ErrorIs(t, err, notify.ErrClosed)
	assert.NoError(t, n.Close())
	sink.AssertExpectations(t)
}

func TestAsyncNotifier_SinkErrorIsSwallowed(t *testing.T) {
	// Arrange
	sink := eventbroker.NewMockNotifier()
	sink.On("Notify", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	sink.On("Close").Return(nil).Once()
	n := notify.NewAsyncNotifier(sink, 4, slog.Default())

	// Act
	err := n.Notify(context.Background(), event(0))

	// Assert
	assert.NoError(t, err)
	assert.NoError(t, n.Close())
	sink.AssertExpectations(t)
}

func TestLogNotifier_Notify(t *testing.T) {
	n := notify.NewLogNotifier(slog.Default())

	assert.NoError(t, n.Notify(context.Background(), event(1)))
	assert.NoError(t, n.Close())
}
