package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/tanq16/droidup/internal/utils"
)

const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusSuccess = "success"
	StatusError   = "error"
)

type JobOutput struct {
	ID          int
	Label       string
	Status      string
	Message     string
	StreamLines []string
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	Label string
	Error error
	Time  time.Time
}

// Manager renders one status line per registered job plus its stream lines,
// redrawing in place on a ticker until StopDisplay.
type Manager struct {
	out         io.Writer
	outputs     map[int]*JobOutput
	mutex       sync.RWMutex
	numLines    int
	maxStreams  int
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	jobCount    int
	displayWg   sync.WaitGroup
	live        bool
}

func NewManager() *Manager {
	return NewManagerWithWriter(os.Stdout, IsTerminal())
}

// NewManagerWithWriter builds a manager writing to w. When live is false the
// ticker redraw is skipped and only the final state is printed.
func NewManagerWithWriter(w io.Writer, live bool) *Manager {
	return &Manager{
		out:         w,
		outputs:     make(map[int]*JobOutput),
		maxStreams:  10,
		doneCh:      make(chan struct{}),
		displayTick: 200 * time.Millisecond,
		live:        live,
	}
}

func (m *Manager) RegisterJob(label string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.jobCount++
	m.outputs[m.jobCount] = &JobOutput{
		ID:          m.jobCount,
		Label:       label,
		Status:      StatusPending,
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
	}
	return m.jobCount
}

func (m *Manager) update(id int, fn func(info *JobOutput)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		fn(info)
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) SetMessage(id int, message string) {
	m.update(id, func(info *JobOutput) { info.Message = message })
}

func (m *Manager) SetStatus(id int, status string) {
	m.update(id, func(info *JobOutput) { info.Status = status })
}

func (m *Manager) GetStatus(id int) string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if info, exists := m.outputs[id]; exists {
		return info.Status
	}
	return "unknown"
}

func (m *Manager) Complete(id int, message string) {
	m.update(id, func(info *JobOutput) {
		info.StreamLines = nil
		if message == "" {
			message = fmt.Sprintf("Completed %s", info.Label)
		}
		info.Message = message
		info.Complete = true
		info.Status = StatusSuccess
	})
}

func (m *Manager) ReportError(id int, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.Complete = true
		info.Status = StatusError
		info.Error = err
		info.LastUpdated = time.Now()
		m.errors = append(m.errors, ErrorReport{Label: info.Label, Error: err, Time: time.Now()})
	}
}

func (m *Manager) AddStreamLine(id int, line string) {
	m.update(id, func(info *JobOutput) {
		info.StreamLines = append(info.StreamLines, wrapText(line, 6)...)
		if len(info.StreamLines) > m.maxStreams {
			info.StreamLines = info.StreamLines[len(info.StreamLines)-m.maxStreams:]
		}
	})
}

// SetProgress replaces the job's stream lines with a single progress line.
func (m *Manager) SetProgress(id int, current, total int64) {
	m.update(id, func(info *JobOutput) {
		elapsed := time.Since(info.StartTime).Seconds()
		display := fmt.Sprintf("%s%s %s", ProgressLine(current, total, 30), StyleSymbols["bullet"], debugStyle.Render(utils.FormatSpeed(current, elapsed)))
		info.StreamLines = []string{display}
	})
}

func (m *Manager) ErrorCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.errors)
}

func (m *Manager) statusIndicator(status string) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(StyleSymbols["pass"])
	case StatusError:
		return errorStyle.Render(StyleSymbols["fail"])
	case StatusPending:
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func styleMessage(status, message string) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(message)
	case StatusError:
		return errorStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

func (m *Manager) sortedJobs() []*JobOutput {
	jobs := make([]*JobOutput, 0, len(m.outputs))
	for _, info := range m.outputs {
		jobs = append(jobs, info)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

func (m *Manager) render() []string {
	var lines []string
	for _, info := range m.sortedJobs() {
		elapsed := time.Since(info.StartTime)
		if info.Complete {
			elapsed = info.LastUpdated.Sub(info.StartTime)
		}
		message := info.Message
		if message == "" && info.Status == StatusPending {
			message = "Waiting..."
		}
		lines = append(lines, fmt.Sprintf("  %s %s %s", m.statusIndicator(info.Status), debugStyle.Render(elapsed.Round(time.Second).String()), styleMessage(info.Status, message)))
		for _, line := range info.StreamLines {
			lines = append(lines, "      "+streamStyle.Render(line))
		}
	}
	return lines
}

func (m *Manager) updateDisplay() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, termHeight := terminalSize()
	lines := m.render()
	if available := termHeight - 3; len(lines) > available && available > 0 {
		lines = lines[len(lines)-available:]
	}
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	for _, line := range lines {
		fmt.Fprintln(m.out, line)
	}
	m.numLines = len(lines)
}

func (m *Manager) StartDisplay() {
	if !m.live {
		return
	}
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.updateDisplay()
			case <-m.doneCh:
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
	m.updateDisplay()
	m.ShowSummary()
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var success, failures int
	for _, info := range m.outputs {
		switch info.Status {
		case StatusSuccess:
			success++
		case StatusError:
			failures++
		}
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "  "+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, len(m.outputs))))
	if failures > 0 {
		fmt.Fprintln(m.out, "  "+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(m.outputs))))
	}
	if len(m.errors) > 0 {
		fmt.Fprintln(m.out)
		fmt.Fprintln(m.out, "  "+errorStyle.Bold(true).Render("Errors:"))
		for i, report := range m.errors {
			fmt.Fprintf(m.out, "    %s %s %s\n",
				errorStyle.Render(fmt.Sprintf("%d.", i+1)),
				debugStyle.Render(fmt.Sprintf("[%s]", report.Time.Format("15:04:05"))),
				errorStyle.Render(report.Label))
			fmt.Fprintf(m.out, "      %s\n", errorStyle.Render(fmt.Sprintf("Error: %v", report.Error)))
		}
	}
	fmt.Fprintln(m.out)
}
