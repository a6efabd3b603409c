package ingress

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/peter-kozarec/paperloop/pkg/bus"
	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/utility"
)

const (
	ComponentName = "ingress"

	maxBodyBytes = 1 << 20
)

// Adapter is the boundary between loosely typed external payloads and the bus.
// Malformed payloads are never published; they become strategy.log notes.
type Adapter struct {
	logger *zap.Logger
	router *bus.Router
	now    func() time.Time
}

func NewAdapter(logger *zap.Logger, router *bus.Router) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		logger: logger.Named(ComponentName),
		router: router,
		now:    time.Now,
	}
}

// PublishRaw decodes raw into the record type of topic and publishes it.
func (a *Adapter) PublishRaw(topic string, raw map[string]any) error {
	record, err := Decode(topic, raw)
	if err != nil {
		a.reject(topic, err)
		return err
	}

	a.router.Publish(topic, a.stamp(record))
	return nil
}

// PublishJSON decodes a JSON object and publishes it like PublishRaw.
func (a *Adapter) PublishJSON(topic string, data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		err = &DecodeError{Topic: topic, Err: err}
		a.reject(topic, err)
		return err
	}
	return a.PublishRaw(topic, raw)
}

// ServeHTTP accepts POST requests whose last path segment names the topic,
// e.g. POST /ingress/market.last with a JSON object body.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST allowed", http.StatusMethodNotAllowed)
		return
	}

	topic := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "unable to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := a.PublishJSON(topic, body); err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			http.Error(w, decodeErr.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *Adapter) stamp(record any) any {
	eid, tid, ts := utility.GetExecutionID(), utility.CreateTraceID(), a.now()

	switch r := record.(type) {
	case common.Price:
		r.Source, r.ExecutionID, r.TraceID, r.TimeStamp = ComponentName, eid, tid, ts
		return r
	case common.Signal:
		r.Source, r.ExecutionID, r.TraceID, r.TimeStamp = ComponentName, eid, tid, ts
		return r
	case common.Order:
		r.Source, r.ExecutionID, r.TraceID, r.TimeStamp = ComponentName, eid, tid, ts
		return r
	case common.Fill:
		r.Source, r.ExecutionID, r.TraceID, r.TimeStamp = ComponentName, eid, tid, ts
		return r
	case common.Note:
		r.Source, r.ExecutionID, r.TraceID, r.TimeStamp = ComponentName, eid, tid, ts
		return r
	default:
		return record
	}
}

func (a *Adapter) reject(topic string, err error) {
	a.logger.Warn("malformed payload", zap.String("topic", topic), zap.Error(err))
	a.router.Publish(common.TopicStrategyLog, common.Note{
		Note:        "malformed payload",
		Fields:      map[string]any{"topic": topic, "error": err.Error()},
		Source:      ComponentName,
		ExecutionID: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   a.now(),
	})
}
