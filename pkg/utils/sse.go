package utils

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// SSEDone terminates a chat stream.
const SSEDone = "[DONE]"

// SendSSEChunk 发送Server-Sent Events数据块
func SendSSEChunk(w http.ResponseWriter, flusher http.Flusher, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		zap.S().Warnw("failed to marshal sse payload", "error", err)
		return err
	}
	return writeSSEData(w, flusher, data)
}

// SendSSEDone writes the terminating sentinel line.
func SendSSEDone(w http.ResponseWriter, flusher http.Flusher) error {
	return writeSSEData(w, flusher, []byte(SSEDone))
}

func writeSSEData(w http.ResponseWriter, flusher http.Flusher, data []byte) error {
	buf := make([]byte, 0, len(data)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, data...)
	buf = append(buf, "\n\n"...)
	if _, err := w.Write(buf); err != nil {
		zap.S().Debugw("failed to write sse frame", "error", err)
		return err
	}
	flusher.Flush()
	return nil
}

// SetupSSEHeaders 设置Server-Sent Events响应头
func SetupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
