package signalx

import (
	"context"
	"os"
	"os/signal"
)

var registered = make(chan struct{})

// SignaledError is the cause of the context returned by Handler.
type SignaledError struct {
	Signal os.Signal
}

func (e SignaledError) Error() string {
	return "received signal " + e.Signal.String()
}

// Handler registers for the termination signals and returns a context,
// which is canceled with a SignaledError at the first signal,
// the process exits at the second one.
func Handler() context.Context {
	close(registered) // Panics when called twice.

	sigChan := make(chan os.Signal, len(sigs))
	ctx, cancel := context.WithCancelCause(context.Background())

	signal.Notify(sigChan, sigs...)

	go func() {
		var exited bool
		for sig := range sigChan {
			if exited {
				os.Exit(1)
			}
			cancel(SignaledError{Signal: sig})
			exited = true
		}
	}()

	return ctx
}
