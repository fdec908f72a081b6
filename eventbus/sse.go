package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/siherrmann/graphrag/model"
)

// ServeHTTP writes an SSE stream of every event published to b until the
// request context is cancelled or the subscriber's channel is closed.
// Framing is plain stdlib net/http + fmt.Fprintf ("event: name\ndata:
// payload\n\n"); no SSE/web framework is introduced.
func (b *Bus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := b.Subscribe()
	defer sub.Close()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev model.Event) error {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, payload)
	return err
}

// Drain reads every event on sub.Events until ctx is done, invoking fn for
// each. Used by non-HTTP consumers (tests, internal bridges) that want the
// same delivery semantics without a ResponseWriter.
func Drain(ctx context.Context, sub *Subscription, fn func(model.Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			fn(ev)
		}
	}
}
