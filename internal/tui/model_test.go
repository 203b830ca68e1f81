package tui

import (
	"context"
	"net/http"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/ecoinvest/internal/recommend"
)

type stubSubmitter struct {
	body    string
	sectors []string
}

func (s *stubSubmitter) Submit(_ context.Context, sector string) (recommend.Response, error) {
	s.sectors = append(s.sectors, sector)
	return recommend.Response{Status: http.StatusOK, Body: []byte(s.body)}, nil
}

// drain runs cmd and every command it batches, feeding replies back into m.
func drain(t *testing.T, m Model, cmd tea.Cmd) (Model, []tea.Msg) {
	t.Helper()
	var seen []tea.Msg
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		seen = append(seen, msg)
		switch msg := msg.(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case replyMsg:
			next, _ := m.Update(msg)
			m = next.(Model)
		}
	}
	return m, seen
}

func typeText(m Model, s string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return next.(Model)
}

func isQuit(msgs []tea.Msg) bool {
	for _, msg := range msgs {
		if _, ok := msg.(tea.QuitMsg); ok {
			return true
		}
	}
	return false
}

func TestModelSubmit(t *testing.T) {
	convey.Convey("Given a model over a server returning one record", t, func() {
		sub := &stubSubmitter{body: `[{"State":"CA","Combined ESI":87.5}]`}
		m := typeText(New(context.Background(), sub), "Energy")

		convey.Convey("When Enter is pressed", func() {
			next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
			m = next.(Model)
			convey.So(m.pending, convey.ShouldEqual, 1)
			m, msgs := drain(t, m, cmd)

			convey.Convey("Then the sector field is posted and the program keeps running", func() {
				convey.So(sub.sectors, convey.ShouldResemble, []string{"Energy"})
				convey.So(isQuit(msgs), convey.ShouldBeFalse)
				convey.So(m.Value(), convey.ShouldEqual, "Energy")
				convey.So(m.pending, convey.ShouldEqual, 0)
			})

			convey.Convey("Then the list and chart are shown", func() {
				view := m.View()
				convey.So(view, convey.ShouldContainSubstring, "State: CA, Combined ESI: 87.5")
				convey.So(view, convey.ShouldContainSubstring, "Combined ESI\n")
				convey.So(view, convey.ShouldContainSubstring, "█")
			})
		})
	})

	convey.Convey("Given a model over a server reporting an error", t, func() {
		sub := &stubSubmitter{body: `{"error":"no data"}`}
		m := typeText(New(context.Background(), sub), "Energy")

		next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m, _ = drain(t, next.(Model), cmd)

		convey.Convey("Then only the message is shown", func() {
			view := m.View()
			convey.So(view, convey.ShouldContainSubstring, "no data")
			convey.So(view, convey.ShouldNotContainSubstring, "█")
		})
	})

	convey.Convey("Given a model over a broken server", t, func() {
		sub := &stubSubmitter{body: `nonsense`}
		m := New(context.Background(), sub, WithSector("hydropower"))

		next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m, _ = drain(t, next.(Model), cmd)

		convey.Convey("Then the failure is shown as an error line", func() {
			convey.So(m.err, convey.ShouldNotBeNil)
			convey.So(sub.sectors, convey.ShouldResemble, []string{"hydropower"})
		})
	})
}

func TestModelQuit(t *testing.T) {
	convey.Convey("Given a model", t, func() {
		m := New(context.Background(), &stubSubmitter{body: `[]`})

		for _, key := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
			_, cmd := m.Update(tea.KeyMsg{Type: key})
			convey.So(cmd, convey.ShouldNotBeNil)
			_, ok := cmd().(tea.QuitMsg)
			convey.So(ok, convey.ShouldBeTrue)
		}
	})
}
