package recommend_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ecoinvest/internal/recommend"
)

type recorder struct {
	mu      sync.Mutex
	text    string
	items   []string
	cleared int
	appends int
	charts  []recommend.Chart
}

func (r *recorder) SetText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text, r.items = text, nil
}

func (r *recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text, r.items = "", nil
	r.cleared++
}

func (r *recorder) AppendList(items []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append([]string{}, items...)
	r.appends++
}

func (r *recorder) Draw(c recommend.Chart) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.charts = append(r.charts, c)
}

type seenRequest struct {
	method, contentType, sector string
	hasSector                   bool
}

func server(status int, body string, seen *seenRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != recommend.Path {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		if seen != nil {
			seen.method = r.Method
			seen.contentType = r.Header.Get("Content-Type")
			_, seen.hasSector = r.PostForm["sector"]
			seen.sector = r.PostForm.Get("sector")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
}

func TestSubmit(t *testing.T) {
	Convey("Given a handler wired to a server returning one record", t, func() {
		seen := &seenRequest{}
		srv := server(http.StatusOK, `[{"State":"CA","Combined ESI":87.5}]`, seen)
		defer srv.Close()
		rec := &recorder{}
		h := recommend.New(recommend.NewHTTPSubmitter(srv.URL), rec, rec)

		Convey("When the sector Energy is submitted", func() {
			reply, err := h.Submit(context.Background(), "Energy")

			Convey("Then the request is a form-encoded POST of the sector", func() {
				So(err, ShouldBeNil)
				So(seen.method, ShouldEqual, http.MethodPost)
				So(seen.contentType, ShouldEqual, "application/x-www-form-urlencoded")
				So(seen.sector, ShouldEqual, "Energy")
			})

			Convey("Then the list and chart show the record", func() {
				So(reply.Failed(), ShouldBeFalse)
				So(rec.items, ShouldResemble, []string{"State: CA, Combined ESI: 87.5"})
				So(rec.charts, ShouldHaveLength, 1)
				So(rec.charts[0].Labels, ShouldResemble, []string{"CA"})
				So(rec.charts[0].Datasets, ShouldHaveLength, 1)
				So(rec.charts[0].Datasets[0].Label, ShouldEqual, "Combined ESI")
				So(rec.charts[0].Datasets[0].Data, ShouldResemble, []float64{87.5})
				So(rec.charts[0].BeginAtZero, ShouldBeTrue)
			})
		})

		Convey("When an empty sector is submitted", func() {
			_, err := h.Submit(context.Background(), "")

			Convey("Then it is sent unvalidated", func() {
				So(err, ShouldBeNil)
				So(seen.hasSector, ShouldBeTrue)
				So(seen.sector, ShouldEqual, "")
			})
		})
	})

	Convey("Given a server reporting an error", t, func() {
		srv := server(http.StatusOK, `{"error":"no data"}`, nil)
		defer srv.Close()
		rec := &recorder{items: []string{"previous"}}
		h := recommend.New(recommend.NewHTTPSubmitter(srv.URL), rec, rec)

		Convey("When a sector is submitted", func() {
			reply, err := h.Submit(context.Background(), "Energy")

			Convey("Then only the text changes", func() {
				So(err, ShouldBeNil)
				So(reply.Failed(), ShouldBeTrue)
				So(reply.Message, ShouldEqual, "no data")
				So(rec.text, ShouldEqual, "no data")
				So(rec.items, ShouldBeEmpty)
				So(rec.appends, ShouldEqual, 0)
				So(rec.charts, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a server returning an empty array", t, func() {
		srv := server(http.StatusOK, `[]`, nil)
		defer srv.Close()
		rec := &recorder{text: "old"}
		h := recommend.New(recommend.NewHTTPSubmitter(srv.URL), rec, rec)

		Convey("When a sector is submitted", func() {
			_, err := h.Submit(context.Background(), "Energy")

			Convey("Then an empty list and an empty chart are rendered", func() {
				So(err, ShouldBeNil)
				So(rec.cleared, ShouldEqual, 1)
				So(rec.appends, ShouldEqual, 1)
				So(rec.items, ShouldBeEmpty)
				So(rec.charts, ShouldHaveLength, 1)
				So(rec.charts[0].Labels, ShouldBeEmpty)
				So(rec.charts[0].Datasets[0].Data, ShouldBeEmpty)
			})
		})
	})
}

func TestSubmitFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"non-JSON body", http.StatusOK, `<html>oops</html>`, recommend.ErrMalformedResponse},
		{"object without error", http.StatusOK, `{"State":"CA"}`, recommend.ErrMalformedResponse},
		{"empty error", http.StatusOK, `{"error":""}`, recommend.ErrMalformedResponse},
		{"bad record", http.StatusOK, `[{"State":"CA","Combined ESI":"high"}]`, recommend.ErrMalformedResponse},
		{"server problem", http.StatusBadRequest, `{"code":"bad_request","message":"missing"}`, recommend.ErrRequest},
		{"server crash", http.StatusInternalServerError, `oops`, recommend.ErrRequest},
	}

	for _, tc := range cases {
		Convey("Given a reply with "+tc.name, t, func() {
			srv := server(tc.status, tc.body, nil)
			defer srv.Close()
			rec := &recorder{text: "kept"}
			h := recommend.New(recommend.NewHTTPSubmitter(srv.URL), rec, rec)

			_, err := h.Submit(context.Background(), "Energy")

			Convey("Then the error is returned and the output untouched", func() {
				So(errors.Is(err, tc.want), ShouldBeTrue)
				So(rec.text, ShouldEqual, "kept")
				So(rec.charts, ShouldBeEmpty)
			})
		})
	}

	Convey("Given an unreachable server", t, func() {
		srv := server(http.StatusOK, `[]`, nil)
		srv.Close()
		rec := &recorder{}
		h := recommend.New(recommend.NewHTTPSubmitter(srv.URL), rec, rec)

		_, err := h.Submit(context.Background(), "Energy")

		Convey("Then ErrRequest is returned", func() {
			So(errors.Is(err, recommend.ErrRequest), ShouldBeTrue)
			So(rec.cleared, ShouldEqual, 0)
		})
	})
}

// gatedSubmitter announces each call on entered and replies once the
// sector's gate is closed.
type gatedSubmitter struct {
	entered chan string
	gates   map[string]chan struct{}
}

func newGated(sectors ...string) gatedSubmitter {
	g := gatedSubmitter{entered: make(chan string, len(sectors)), gates: map[string]chan struct{}{}}
	for _, s := range sectors {
		g.gates[s] = make(chan struct{})
	}
	return g
}

func (g gatedSubmitter) Submit(ctx context.Context, sector string) (recommend.Response, error) {
	g.entered <- sector
	select {
	case <-g.gates[sector]:
	case <-ctx.Done():
		return recommend.Response{}, ctx.Err()
	}
	return recommend.Response{Status: http.StatusOK, Body: []byte(`[{"State":"` + sector + `","Combined ESI":1}]`)}, nil
}

// overtake starts "first", lets "second" start and resolve, then resolves
// "first".
func overtake(h *recommend.Handler, g gatedSubmitter) (firstErr, secondErr error) {
	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		_, err := h.Submit(ctx, "first")
		done <- err
	}()
	<-g.entered

	close(g.gates["second"])
	_, secondErr = h.Submit(ctx, "second")
	<-g.entered

	close(g.gates["first"])
	return <-done, secondErr
}

func TestOverlappingSubmissions(t *testing.T) {
	Convey("Given two submissions whose replies resolve out of order", t, func() {
		g := newGated("first", "second")
		rec := &recorder{}
		h := recommend.New(g, rec, rec)

		firstErr, secondErr := overtake(h, g)

		Convey("Then nothing crashes and the last reply to resolve wins", func() {
			So(firstErr, ShouldBeNil)
			So(secondErr, ShouldBeNil)
			So(rec.items, ShouldResemble, []string{"State: first, Combined ESI: 1"})
			So(rec.charts, ShouldHaveLength, 2)
		})
	})

	Convey("Given a latest-only handler", t, func() {
		g := newGated("first", "second")
		rec := &recorder{}
		h := recommend.New(g, rec, rec, recommend.WithLatestOnly())

		firstErr, secondErr := overtake(h, g)

		Convey("Then the superseded reply is dropped", func() {
			So(secondErr, ShouldBeNil)
			So(errors.Is(firstErr, recommend.ErrSuperseded), ShouldBeTrue)
			So(rec.items, ShouldResemble, []string{"State: second, Combined ESI: 1"})
			So(rec.charts, ShouldHaveLength, 1)
		})
	})
}

func TestFormatting(t *testing.T) {
	Convey("Scores print in shortest form", t, func() {
		So(recommend.FormatScore(87.5), ShouldEqual, "87.5")
		So(recommend.FormatScore(64), ShouldEqual, "64")
		So(recommend.FormatScore(61.2575), ShouldEqual, "61.2575")
	})
}
