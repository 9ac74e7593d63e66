// reviewcli is a terminal front end for the review session engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/domino14/review_engine/config"
	"github.com/domino14/review_engine/internal/auth"
	"github.com/domino14/review_engine/internal/engine"
	"github.com/domino14/review_engine/internal/events"
	sessprogress "github.com/domino14/review_engine/internal/progress"
	"github.com/domino14/review_engine/internal/resilience"
	"github.com/domino14/review_engine/internal/review"
	"github.com/domino14/review_engine/internal/reviewclient"
	"github.com/domino14/review_engine/internal/sessionstore"
)

// opDone is sent when an engine call that ran off the UI goroutine returns.
type opDone struct {
	action string
	err    error
}

type eventMsg events.Event

type model struct {
	eng       *engine.Engine
	cfg       *config.Config
	username  string
	textInput textinput.Model
	bar       progress.Model
	answer    string
	busy      bool
	status    string
	lines     []string
}

func initialModel(eng *engine.Engine, cfg *config.Config, username string) model {
	ti := textinput.New()
	ti.Placeholder = "Translation"
	ti.Focus()
	ti.CharLimit = 40
	ti.Width = 40

	return model{
		eng:       eng,
		cfg:       cfg,
		username:  username,
		textInput: ti,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m model) run(action string, f func(ctx context.Context) error) tea.Cmd {
	timeout := m.cfg.RequestTimeout * time.Duration(max(m.cfg.RetryAttempts, 1)*2)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return opDone{action: action, err: f(ctx)}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.run("initialize", m.eng.Initialize))
}

func (m model) startCmd() tea.Cmd {
	mode := review.Mode(m.cfg.DefaultMode)
	limit := m.cfg.DefaultLimit
	return m.run("start", func(ctx context.Context) error {
		return m.eng.StartReview(ctx, mode, limit, engine.Filters{})
	})
}

func (m model) submitCmd(outcome review.Outcome) tea.Cmd {
	var opts []engine.SubmitOption
	if m.answer != "" {
		opts = append(opts, engine.WithUserAnswer(m.answer))
	}
	return m.run("submit", func(ctx context.Context) error {
		return m.eng.SubmitReview(ctx, outcome, opts...)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.textInput.Focused() {
			switch msg.Type {
			case tea.KeyEnter:
				m.answer = strings.TrimSpace(m.textInput.Value())
				m.textInput.Blur()
				if !m.eng.ShowAnswer() {
					m.eng.ToggleAnswer()
				}
				return m, nil
			case tea.KeyEsc:
				m.textInput.Blur()
				return m, nil
			}
			m.textInput, cmd = m.textInput.Update(msg)
			return m, cmd
		}
		return m.handleKey(msg)

	case opDone:
		m.busy = false
		if msg.err != nil {
			var verr *engine.ValidationError
			switch {
			case errors.As(msg.err, &verr):
				m.status = "Cannot start: " + verr.Error()
			case resilience.IsAuthError(msg.err):
				m.status = "Not authorized. Check your token."
			default:
				m.status = msg.action + " failed: " + msg.err.Error()
			}
		}
		if msg.action == "submit" || msg.action == "start" || msg.action == "skip" {
			m.answer = ""
			m.textInput.Reset()
			m.textInput.Focus()
		}
		return m, nil

	case eventMsg:
		m.lines = append(m.lines, describeEvent(events.Event(msg)))
		if len(m.lines) > 5 {
			m.lines = m.lines[len(m.lines)-5:]
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, 60)
		return m, nil

	case progress.FrameMsg:
		pm, cmd := m.bar.Update(msg)
		m.bar = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

var outcomeKeys = map[string]review.Outcome{
	"1": review.OutcomeAgain,
	"2": review.OutcomeHard,
	"3": review.OutcomeGood,
	"4": review.OutcomeEasy,
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := strings.ToLower(msg.String())
	if key == "q" {
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}
	m.status = ""
	if outcome, ok := outcomeKeys[key]; ok {
		if m.eng.CurrentCard() == nil {
			return m, nil
		}
		m.busy = true
		return m, m.submitCmd(outcome)
	}
	switch key {
	case "f":
		m.eng.ToggleAnswer()
	case "tab", "a":
		m.textInput.Focus()
		return m, textinput.Blink
	case "n":
		if m.eng.IsSessionActive() {
			m.status = "Finish or end the current session first."
			return m, nil
		}
		m.busy = true
		return m, m.startCmd()
	case "s":
		m.busy = true
		return m, m.run("skip", m.eng.SkipCard)
	case "c":
		m.busy = true
		return m, m.run("complete", m.eng.CompleteSession)
	case "p":
		eng := m.eng
		if eng.IsPaused() {
			return m, m.run("resume", func(context.Context) error { eng.ResumeSession(); return nil })
		}
		return m, m.run("pause", func(context.Context) error { eng.PauseSession(); return nil })
	case "r":
		eng := m.eng
		return m, m.run("restart", func(context.Context) error { eng.RestartSession(); return nil })
	case "e":
		eng := m.eng
		return m, m.run("end", func(context.Context) error { eng.EndSession(); return nil })
	}
	return m, nil
}

func describeEvent(e events.Event) string {
	ts := e.Timestamp.Format("15:04:05")
	switch e.Type {
	case events.Start:
		return fmt.Sprintf("%s started %v session with %v cards", ts, e.Data["mode"], e.Data["totalCards"])
	case events.Submit:
		return fmt.Sprintf("%s card %v: %v", ts, e.Data["cardIndex"], e.Data["outcome"])
	case events.Complete:
		if manual, _ := e.Data["manualEnd"].(bool); manual {
			return ts + " session ended"
		}
		return fmt.Sprintf("%s session complete: %v/%v correct", ts, e.Data["correctAnswers"], e.Data["totalCards"])
	case events.Error:
		return fmt.Sprintf("%s error during %v: %v", ts, e.Data["action"], e.Data["error"])
	}
	return ts + " " + string(e.Type)
}

func (m model) cardView() string {
	sc := m.eng.CurrentCard()
	if sc == nil {
		if last := m.eng.LastCompleted(); last != nil {
			return fmt.Sprintf("Last session: %d of %d correct.\n\nPress (N) to start a new session.",
				last.CorrectAnswers, last.TotalCards)
		}
		return "There is no session running. Press (N) to start one."
	}
	word := sc.Card.Word
	body := strings.Repeat("-", 20) + "\n\n"
	body += "  " + word.Text
	if word.Pronunciation != "" {
		body += "  [" + word.Pronunciation + "]"
	}
	body += "\n\n"
	if m.eng.ShowAnswer() {
		body += "  " + word.Translation + "\n"
		if word.ExampleSentence != "" {
			body += "  " + word.ExampleSentence + " / " + word.ExampleTranslation + "\n"
		}
		if m.answer != "" {
			body += "  you said: " + m.answer + "\n"
		}
	}
	return body
}

func (m model) View() string {
	header := "Reviewing as " + m.username
	if m.eng.IsPaused() {
		header += "  (paused)"
	}
	var bar string
	if snap, ok := m.eng.Progress(); ok {
		bar = fmt.Sprintf("%s  %d/%d  accuracy %.0f%%  %s\n",
			m.bar.ViewAs(snap.Percentage/100), snap.Current, snap.Total, snap.Accuracy,
			sessprogress.FormatResponseTime(m.eng.CurrentResponseTime()))
	}
	footer := "(1) Again   (2) Hard   (3) Good   (4) Easy   (F) Flip   (A) Answer\n\n" +
		"(S) Skip   (P) Pause   (R) Restart   (C) Complete   (E) End   (N) New   (Q) Quit"
	var status string
	if m.busy {
		status = "working...\n"
	} else if m.status != "" {
		status = m.status + "\n"
	}
	return header + "\n\n" + bar + "\n" + m.cardView() + "\n" + m.textInput.View() + "\n\n" +
		status + strings.Join(m.lines, "\n") + "\n" +
		strings.Repeat("-", 25) + "\n" + footer + "\n"
}

func main() {
	_ = godotenv.Load()
	cfg := &config.Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		fmt.Printf("Bad configuration: %v\n", err)
		os.Exit(1)
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	// The terminal belongs to the TUI; logs go to a file.
	logFile, err := os.OpenFile("reviewcli.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Printf("Cannot open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	log.Logger = zerolog.New(logFile).With().Timestamp().Logger()

	user, err := auth.UserFromToken(cfg.AuthToken)
	if err != nil {
		fmt.Printf("A valid -auth-token is required: %v\n", err)
		os.Exit(1)
	}

	var store sessionstore.Store = sessionstore.NewMemoryStore()
	if cfg.StorePath != "" {
		sq, err := sessionstore.OpenSQLite(cfg.StorePath)
		if err != nil {
			fmt.Printf("Cannot open session store: %v\n", err)
			os.Exit(1)
		}
		defer sq.Close()
		store = sq
	}

	client := reviewclient.NewClient(&http.Client{Timeout: cfg.RequestTimeout}, cfg.ServiceURL, cfg.AuthToken)
	retrier := resilience.New()
	retrier.MaxAttempts = cfg.RetryAttempts
	retrier.BaseDelay = cfg.RetryBaseDelay
	retrier.MaxJitter = cfg.RetryMaxJitter

	eng := engine.New(client, sessionstore.NewAdapter(store),
		engine.WithRetrier(retrier), engine.WithUserID(user.UserID))

	p := tea.NewProgram(initialModel(eng, cfg, user.Username))
	// Engine calls only run inside commands, so Send never blocks Update.
	unsubscribe := eng.AddEventListener(func(e events.Event) { p.Send(eventMsg(e)) })
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
