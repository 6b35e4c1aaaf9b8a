package runtime

import (
	"bufio"
	"bytes"
	"io"
	"mime"
	"strings"
)

const (
	contentTypeEventStream = "text/event-stream"
	contentTypeJSON        = "application/json"
)

// maxEventLine bounds a single event-stream line.
const maxEventLine = 1 << 20

// decodeEventStream collects the payload of every "data: " line and joins
// them without separators. Other lines (event names, ids, comments) are
// dropped.
func decodeEventStream(r io.Reader) ([]byte, error) {
	var out bytes.Buffer

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if data, ok := bytes.CutPrefix(line, []byte("data: ")); ok {
			out.Write(data)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func isEventStream(contentType string) bool {
	return mediaType(contentType) == contentTypeEventStream
}

func isJSON(contentType string) bool {
	mt := mediaType(contentType)
	return mt == contentTypeJSON || strings.HasSuffix(mt, "+json")
}
