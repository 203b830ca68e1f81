// Package recommend submits a sector to the recommendation server and renders
// the reply: the server's error message as plain text, or a list of
// "State: X, Combined ESI: Y" lines plus a bar chart.
//
// The output area and the chart are handles given to New; the handler keeps
// no state between submissions other than the optional generation counter.
package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/okian/ecoinvest/internal/domain/types"
	"github.com/okian/ecoinvest/pkg/logger"
)

// DatasetLabel labels the single chart dataset.
const DatasetLabel = "Combined ESI"

// Output is the text/list area.
type Output interface {
	// SetText replaces the area's content with plain text.
	SetText(text string)
	// Clear empties the area.
	Clear()
	// AppendList appends an unordered list, one entry per item.
	AppendList(items []string)
}

// Canvas renders a bar chart.
type Canvas interface {
	Draw(chart Chart)
}

// Chart is a bar chart with category labels and numeric datasets.
type Chart struct {
	Labels      []string
	Datasets    []Dataset
	BeginAtZero bool
}

// Dataset is one series of bar heights.
type Dataset struct {
	Label string
	Data  []float64
}

// Reply is what a submission rendered.
type Reply struct {
	// Message is the server-reported error, empty on success.
	Message string
	Records []types.Recommendation
}

// Failed reports whether the server reported an error.
func (r Reply) Failed() bool { return r.Message != "" }

// Handler runs the submit flow against its output handles.
type Handler struct {
	submitter  Submitter
	output     Output
	canvas     Canvas
	latestOnly bool
	log        logger.Logger

	generation atomic.Uint64
	renderMu   sync.Mutex
}

// New creates a handler. None of the handles may be nil.
func New(submitter Submitter, output Output, canvas Canvas, opts ...Option) *Handler {
	if submitter == nil || output == nil || canvas == nil {
		panic("recommend: nil submitter, output or canvas")
	}
	h := &Handler{
		submitter: submitter,
		output:    output,
		canvas:    canvas,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Submit sends sector and renders the reply.
//
// A server-reported error replaces the output text and leaves the chart alone.
// Transport failures and malformed replies are returned without touching
// either handle. Concurrent calls are independent; the last reply to resolve
// is what remains on screen unless WithLatestOnly is set.
func (h *Handler) Submit(ctx context.Context, sector string) (Reply, error) {
	gen := h.generation.Add(1)
	log := h.log.With(logger.String("sector", sector))

	resp, err := h.submitter.Submit(ctx, sector)
	if err != nil {
		log.Warn(ctx, "submit failed", logger.Error(err))
		return Reply{}, err
	}
	reply, err := Decode(resp)
	if err != nil {
		log.Warn(ctx, "bad reply", logger.Int("status", resp.Status), logger.Error(err))
		return Reply{}, err
	}

	h.renderMu.Lock()
	defer h.renderMu.Unlock()
	if h.latestOnly && h.generation.Load() != gen {
		log.Debug(ctx, "dropping superseded reply")
		return reply, ErrSuperseded
	}
	h.render(reply)
	log.Debug(ctx, "rendered", logger.Int("records", len(reply.Records)), logger.Bool("error", reply.Failed()))
	return reply, nil
}

func (h *Handler) render(reply Reply) {
	if reply.Failed() {
		h.output.SetText(reply.Message)
		return
	}
	h.output.Clear()
	h.output.AppendList(Lines(reply.Records))
	h.canvas.Draw(ChartOf(reply.Records))
}

// Decode parses a reply body. Objects must carry a non-empty "error"; any
// other shape than an array of records is malformed. Non-2xx replies
// without an error object are request failures.
func Decode(resp Response) (Reply, error) {
	body := bytes.TrimSpace(resp.Body)
	ok := resp.Status >= 200 && resp.Status < 300

	switch {
	case len(body) > 0 && body[0] == '{':
		var eb struct {
			Error *string `json:"error"`
		}
		if err := json.Unmarshal(body, &eb); err != nil {
			return Reply{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		if eb.Error == nil || *eb.Error == "" {
			if !ok {
				return Reply{}, fmt.Errorf("%w: status %d: %s", ErrRequest, resp.Status, body)
			}
			return Reply{}, fmt.Errorf("%w: object without error message", ErrMalformedResponse)
		}
		return Reply{Message: *eb.Error}, nil
	case !ok:
		return Reply{}, fmt.Errorf("%w: status %d", ErrRequest, resp.Status)
	case len(body) > 0 && body[0] == '[':
		var recs []types.Recommendation
		if err := json.Unmarshal(body, &recs); err != nil {
			return Reply{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		if recs == nil {
			recs = []types.Recommendation{}
		}
		return Reply{Records: recs}, nil
	default:
		return Reply{}, fmt.Errorf("%w: expected an array or an error object", ErrMalformedResponse)
	}
}

// Lines formats one list entry per record.
func Lines(recs []types.Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = fmt.Sprintf("State: %s, Combined ESI: %s", r.State, FormatScore(r.CombinedESI))
	}
	return out
}

// FormatScore prints v in its shortest round-trip form: 87.5, 64, 61.2575.
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ChartOf builds the bar chart for recs: labels are states, bars are scores.
func ChartOf(recs []types.Recommendation) Chart {
	labels := make([]string, len(recs))
	data := make([]float64, len(recs))
	for i, r := range recs {
		labels[i] = r.State
		data[i] = r.CombinedESI
	}
	return Chart{
		Labels:      labels,
		Datasets:    []Dataset{{Label: DatasetLabel, Data: data}},
		BeginAtZero: true,
	}
}
