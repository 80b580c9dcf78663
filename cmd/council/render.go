package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/council"
)

var (
	phaseColor  = color.New(color.FgCyan, color.Bold)
	agentColor  = color.New(color.FgYellow, color.Bold)
	failedColor = color.New(color.FgRed)
	dimColor    = color.New(color.Faint)
)

// liveRenderer prints a deliberation as it happens. Initial analyses run
// in parallel, so their tokens are counted on a single status line and each
// answer is printed whole when it completes. Synthesis tokens stream
// straight through.
type liveRenderer struct {
	mu     sync.Mutex
	w      io.Writer
	width  int
	names  map[string]string
	tokens map[string]int
	status bool
}

func newLiveRenderer(w io.Writer, reg *agent.Registry) *liveRenderer {
	width := 80
	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			width = cols
		}
	}
	names := make(map[string]string)
	for _, a := range reg.List() {
		names[a.ID] = a.Name
	}
	return &liveRenderer{w: w, width: width, names: names, tokens: make(map[string]int)}
}

func (r *liveRenderer) name(id string) string {
	if n, ok := r.names[id]; ok {
		return n
	}
	return id
}

// clearStatus erases the status line when one is showing. Callers hold mu.
func (r *liveRenderer) clearStatus() {
	if r.status {
		fmt.Fprintf(r.w, "\r%s\r", strings.Repeat(" ", r.width-1))
		r.status = false
	}
}

// drawStatus redraws the token counters, truncated to the terminal width.
// Callers hold mu.
func (r *liveRenderer) drawStatus() {
	if len(r.tokens) == 0 {
		return
	}
	ids := make([]string, 0, len(r.tokens))
	for id := range r.tokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s %d", r.name(id), r.tokens[id]))
	}
	line := "  thinking: " + strings.Join(parts, " | ")
	if len(line) > r.width-1 {
		line = line[:r.width-4] + "..."
	}
	fmt.Fprintf(r.w, "\r%s", dimColor.Sprint(line))
	r.status = true
}

func (r *liveRenderer) PhaseChange(phase council.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearStatus()
	if phase == council.PhaseComplete {
		return
	}
	fmt.Fprintf(r.w, "\n%s\n", phaseColor.Sprint("== "+phaseTitle(phase)+" =="))
}

func (r *liveRenderer) AgentStart(a agent.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[a.ID] = 0
	r.clearStatus()
	r.drawStatus()
}

func (r *liveRenderer) Token(agentID, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[agentID]++
	r.drawStatus()
}

func (r *liveRenderer) AgentComplete(resp council.AgentResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, resp.AgentID)
	r.clearStatus()

	header := agentColor.Sprint(resp.AgentName)
	if resp.Failed {
		header += " " + failedColor.Sprint("(unavailable)")
	}
	fmt.Fprintf(r.w, "\n%s %s\n%s\n", header, dimColor.Sprintf("[%s]", resp.Duration.Round(10*time.Millisecond)), strings.TrimSpace(resp.Content))
	r.drawStatus()
}

func (r *liveRenderer) Challenge(challengerID, targetID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearStatus()
	fmt.Fprintf(r.w, "\n%s challenges %s\n%s\n",
		agentColor.Sprint(r.name(challengerID)), agentColor.Sprint(r.name(targetID)), strings.TrimSpace(text))
}

func (r *liveRenderer) Rebuttal(targetID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s responds\n%s\n", agentColor.Sprint(r.name(targetID)), strings.TrimSpace(text))
}

func (r *liveRenderer) SynthesisStart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearStatus()
	fmt.Fprintln(r.w)
}

func (r *liveRenderer) SynthesisToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.w, token)
}

func (r *liveRenderer) Complete(_ string, confidence int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearStatus()
	fmt.Fprintf(r.w, "\n\n%s %s\n", phaseColor.Sprint("Confidence:"), confidenceColor(confidence).Sprintf("%d%%", confidence))
}

// Failed only clears the status line; the error itself is reported on exit.
func (r *liveRenderer) Failed(error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearStatus()
}

func phaseTitle(p council.Phase) string {
	switch p {
	case council.PhaseInitialAnalysis:
		return "Initial analysis"
	case council.PhaseCrossExamination:
		return "Cross-examination"
	case council.PhaseSynthesis:
		return "Synthesis"
	default:
		return string(p)
	}
}

func confidenceColor(c int) *color.Color {
	switch {
	case c >= 85:
		return color.New(color.FgGreen, color.Bold)
	case c >= 78:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

// printSession renders a stored or finished session as plain text.
func printSession(w io.Writer, s *council.Session) {
	fmt.Fprintf(w, "%s %s\n", phaseColor.Sprint("Question:"), s.Question)
	if s.Context != "" {
		fmt.Fprintf(w, "%s %s\n", phaseColor.Sprint("Context:"), s.Context)
	}
	fmt.Fprintf(w, "%s %s  %s %s\n", dimColor.Sprint("id"), s.ID, dimColor.Sprint("at"), s.CreatedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(w, "\n%s\n", phaseColor.Sprint("== Initial analysis =="))
	for _, resp := range s.Responses {
		header := agentColor.Sprint(resp.AgentName)
		if resp.Failed {
			header += " " + failedColor.Sprint("(unavailable)")
		}
		fmt.Fprintf(w, "\n%s\n%s\n", header, strings.TrimSpace(resp.Content))
	}

	if len(s.CrossExaminations) > 0 {
		fmt.Fprintf(w, "\n%s\n", phaseColor.Sprint("== Cross-examination =="))
		for _, x := range s.CrossExaminations {
			fmt.Fprintf(w, "\n%s -> %s\n%s\n%s\n", agentColor.Sprint(x.ChallengerID), agentColor.Sprint(x.TargetID),
				strings.TrimSpace(x.Challenge), dimColor.Sprint(strings.TrimSpace(x.Rebuttal)))
		}
	}

	fmt.Fprintf(w, "\n%s\n%s\n", phaseColor.Sprint("== Synthesis =="), strings.TrimSpace(s.Synthesis))
	fmt.Fprintf(w, "\n%s %s\n", phaseColor.Sprint("Confidence:"), confidenceColor(s.Confidence).Sprintf("%d%%", s.Confidence))
}
