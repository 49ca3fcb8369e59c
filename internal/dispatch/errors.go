package dispatch

import (
	"fmt"

	"farm-alert-service/internal/models"
)

type unknownChannelError struct {
	channel models.Channel
}

func (e *unknownChannelError) Error() string {
	return fmt.Sprintf("no provider registered for channel %q", e.channel)
}

type providerPanicError struct {
	channel models.Channel
	value   interface{}
}

func (e *providerPanicError) Error() string {
	return fmt.Sprintf("provider for channel %q panicked: %v", e.channel, e.value)
}
