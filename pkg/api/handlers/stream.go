package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"noticeboard/pkg/logger"
	"noticeboard/pkg/utils"
)

// streamSSE writes server-sent events until next reports the channel
// closed or the writer stops flushing. next blocks for the next snapshot.
func streamSSE(w http.ResponseWriter, r *http.Request, next func() (interface{}, bool)) {
	fl, ok := w.(http.Flusher)
	if !ok {
		utils.JSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	for {
		payload, more := next()
		if !more {
			return
		}
		b, err := json.Marshal(payload)
		if err != nil {
			logger.Error("sse_encode_failed", "error", err.Error())
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			return
		}
		fl.Flush()
	}
}
