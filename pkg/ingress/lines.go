package ingress

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// TopicKey names the field of a JSON line that selects the topic.
const TopicKey = "topic"

// Consume reads newline-delimited JSON objects from r, each carrying its topic
// under TopicKey, and publishes them until r is exhausted or ctx is done.
// Malformed lines are reported as notes and skipped. It returns the number of
// published records.
func (a *Adapter) Consume(ctx context.Context, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxBodyBytes)

	published := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return published, err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var raw map[string]any
		if err := json.Unmarshal(line, &raw); err != nil {
			a.reject("", &DecodeError{Err: err})
			continue
		}

		topic, err := cast.ToStringE(raw[TopicKey])
		if err != nil || topic == "" {
			a.reject("", &DecodeError{Field: TopicKey, Err: errMissing})
			continue
		}
		delete(raw, TopicKey)

		if err := a.PublishRaw(topic, raw); err != nil {
			continue
		}
		published++
	}

	if err := scanner.Err(); err != nil {
		a.logger.Error("reading event lines failed", zap.Error(err))
		return published, fmt.Errorf("read event lines: %w", err)
	}
	return published, nil
}
