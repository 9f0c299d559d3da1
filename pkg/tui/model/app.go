package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/cronium/pkg/core"
	"github.com/modoterra/cronium/pkg/transport/uds"
)

// Pane identifies which TUI pane is focused.
type Pane int

const (
	PaneList Pane = iota
	PaneDetail
	PaneLogs
)

// Mode identifies the current interaction mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeEditor
	ModeConfirmDelete
)

const maxLogLines = 500

// App is the root Bubble Tea model.
type App struct {
	// Connection
	client     *uds.Client
	socketPath string
	connected  bool
	events     chan tea.Msg

	// State
	jobs        []core.JobView
	selectedIdx int
	logLines    []core.RunLine
	logPaused   bool
	logJob      string

	// UI
	activePane Pane
	mode       Mode
	search     textinput.Model
	width      int
	height     int

	// Editor
	editor *EditorModel

	// Delete confirmation
	deleteTarget string

	// Error display
	statusMsg string
}

// New creates a new TUI app model.
func New(socketPath string) App {
	si := textinput.New()
	si.Placeholder = "search..."
	si.CharLimit = 64

	return App{
		socketPath: socketPath,
		events:     make(chan tea.Msg, 64),
		search:     si,
		activePane: PaneList,
		mode:       ModeNormal,
	}
}

// Init connects to the daemon.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		connectCmd(a.socketPath),
		tea.SetWindowTitle("Cronium"),
	)
}

// tickMsg triggers periodic refresh.
type tickMsg time.Time

// connectedMsg indicates successful daemon connection.
type connectedMsg struct{ client *uds.Client }

// jobsMsg carries the refreshed job list from the daemon.
type jobsMsg struct{ jobs []core.JobView }

// jobsDeltaMsg signals that the daemon pushed a jobs.delta event.
type jobsDeltaMsg struct{}

// runLineMsg carries one line of job output from the daemon.
type runLineMsg core.RunLine

// logsSubscribedMsg confirms a log subscription for a job.
type logsSubscribedMsg struct {
	job  string
	path string
}

// errorMsg carries an error to display.
type errorMsg struct{ err error }

// actionResultMsg carries the result of an action.
type actionResultMsg struct{ msg string }

func connectCmd(socketPath string) tea.Cmd {
	return func() tea.Msg {
		client, err := uds.Dial(socketPath)
		if err != nil {
			return errorMsg{err}
		}
		return connectedMsg{client}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// listenCmd delivers the next server-pushed event to the program.
func listenCmd(events chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-events }
}

func fetchJobsCmd(client *uds.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodListJobs, nil)
		if err != nil {
			return errorMsg{err}
		}

		var jobs []core.JobView
		if err := resp.UnmarshalData(&jobs); err != nil {
			return errorMsg{err}
		}
		return jobsMsg{jobs}
	}
}

// jobActionCmd sends a name-addressed mutation (run, toggle, delete).
func jobActionCmd(client *uds.Client, method, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, method, uds.JobRequest{Name: name})
		if err != nil {
			return errorMsg{err}
		}
		var m uds.MutationResponse
		if err := resp.UnmarshalData(&m); err != nil {
			return errorMsg{err}
		}
		if !m.OK {
			return errorMsg{fmt.Errorf("%s", strings.Join(m.Errors, "; "))}
		}
		return actionResultMsg{msg: method + " → " + name}
	}
}

func saveJobCmd(client *uds.Client, method string, job core.Job) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, method, uds.SaveJobRequest{Job: job})
		if err != nil {
			return errorMsg{err}
		}
		var m uds.MutationResponse
		if err := resp.UnmarshalData(&m); err != nil {
			return errorMsg{err}
		}
		if !m.OK {
			return errorMsg{fmt.Errorf("%s", strings.Join(m.Errors, "; "))}
		}
		return actionResultMsg{msg: "saved " + job.Name}
	}
}

func syncCmd(client *uds.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodSyncCrontab, nil)
		if err != nil {
			return errorMsg{err}
		}
		var s uds.SyncResponse
		if err := resp.UnmarshalData(&s); err != nil {
			return errorMsg{err}
		}
		if !s.OK {
			return errorMsg{fmt.Errorf("sync failed: %s", s.Reason)}
		}
		return actionResultMsg{msg: fmt.Sprintf("installed %d jobs to system crontab", s.Jobs)}
	}
}

func subscribeLogsCmd(client *uds.Client, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodLogsSubscribe, uds.JobRequest{Name: name})
		if err != nil {
			return errorMsg{err}
		}
		var sub struct {
			LogFile string `json:"log_file"`
		}
		if err := resp.UnmarshalData(&sub); err != nil {
			return errorMsg{err}
		}
		return logsSubscribedMsg{job: name, path: sub.LogFile}
	}
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case connectedMsg:
		a.client = msg.client
		a.connected = true
		a.statusMsg = "connected"

		events := a.events
		a.client.OnEvent(func(m uds.Message) {
			var out tea.Msg
			switch m.Method {
			case uds.EventRunsLine:
				var line core.RunLine
				if m.UnmarshalData(&line) != nil {
					return
				}
				out = runLineMsg(line)
			case uds.EventJobsDelta:
				out = jobsDeltaMsg{}
			default:
				return
			}
			select {
			case events <- out:
			default:
			}
		})

		return a, tea.Batch(tickCmd(), fetchJobsCmd(a.client), listenCmd(a.events))

	case tickMsg:
		if a.client != nil {
			return a, tea.Batch(tickCmd(), fetchJobsCmd(a.client))
		}
		return a, tickCmd()

	case jobsMsg:
		a.jobs = msg.jobs
		if a.selectedIdx >= len(a.jobs) {
			a.selectedIdx = max(0, len(a.jobs)-1)
		}
		return a, nil

	case jobsDeltaMsg:
		if a.client != nil {
			return a, tea.Batch(fetchJobsCmd(a.client), listenCmd(a.events))
		}
		return a, listenCmd(a.events)

	case runLineMsg:
		if !a.logPaused {
			a.logLines = append(a.logLines, core.RunLine(msg))
			if len(a.logLines) > maxLogLines {
				a.logLines = a.logLines[len(a.logLines)-maxLogLines:]
			}
		}
		return a, listenCmd(a.events)

	case logsSubscribedMsg:
		a.logJob = msg.job
		a.logLines = nil
		a.statusMsg = "tailing " + msg.path
		return a, nil

	case actionResultMsg:
		a.statusMsg = msg.msg
		if a.client != nil {
			return a, fetchJobsCmd(a.client)
		}
		return a, nil

	case errorMsg:
		a.statusMsg = "error: " + msg.err.Error()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Search mode
	if a.mode == ModeSearch {
		switch msg.String() {
		case "esc":
			a.mode = ModeNormal
			a.search.SetValue("")
			a.search.Blur()
			return a, nil
		case "enter":
			a.mode = ModeNormal
			a.search.Blur()
			return a, nil
		default:
			var cmd tea.Cmd
			a.search, cmd = a.search.Update(msg)
			return a, cmd
		}
	}

	// Editor mode
	if a.mode == ModeEditor && a.editor != nil {
		return a.editor.HandleKey(a, msg)
	}

	// Delete confirmation mode
	if a.mode == ModeConfirmDelete {
		switch msg.String() {
		case "y", "Y":
			name := a.deleteTarget
			a.mode = ModeNormal
			a.deleteTarget = ""
			if a.client == nil {
				a.statusMsg = "not connected"
				return a, nil
			}
			a.statusMsg = "deleting " + name + "..."
			return a, jobActionCmd(a.client, uds.MethodDeleteJob, name)
		default:
			a.mode = ModeNormal
			a.deleteTarget = ""
			a.statusMsg = "delete cancelled"
			return a, nil
		}
	}

	// Normal mode
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "j", "down":
		if a.activePane == PaneList && len(a.jobs) > 0 {
			a.selectedIdx = min(a.selectedIdx+1, len(a.filteredJobs())-1)
		}
	case "k", "up":
		if a.activePane == PaneList && a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "tab":
		a.activePane = (a.activePane + 1) % 3

	case "/":
		a.mode = ModeSearch
		a.search.Focus()
		return a, textinput.Blink

	case "r":
		return a.doJobAction(uds.MethodRunJob)
	case "t":
		return a.doJobAction(uds.MethodToggleJob)

	case "S":
		if a.client == nil {
			a.statusMsg = "not connected"
			return a, nil
		}
		a.statusMsg = "syncing system crontab..."
		return a, syncCmd(a.client)

	case "l":
		a.activePane = PaneLogs
		if job := a.selectedJob(); job != nil && a.client != nil && job.Name != a.logJob {
			return a, subscribeLogsCmd(a.client, job.Name)
		}

	case " ":
		if a.activePane == PaneLogs {
			a.logPaused = !a.logPaused
		}

	case "e":
		if job := a.selectedJob(); job != nil {
			a.editor = NewEditorForJob(job.Job)
			a.mode = ModeEditor
		}

	case "a":
		a.editor = NewEditorForNew()
		a.mode = ModeEditor

	case "d":
		if job := a.selectedJob(); job != nil {
			a.deleteTarget = job.Name
			a.mode = ModeConfirmDelete
			a.statusMsg = "Delete " + a.deleteTarget + "? (y/n)"
		}
	}

	return a, nil
}

func (a App) doJobAction(method string) (tea.Model, tea.Cmd) {
	job := a.selectedJob()
	if a.client == nil || job == nil {
		return a, nil
	}
	return a, jobActionCmd(a.client, method, job.Name)
}

func (a App) filteredJobs() []core.JobView {
	q := strings.ToLower(a.search.Value())
	if q == "" {
		return a.jobs
	}
	var filtered []core.JobView
	for _, job := range a.jobs {
		if strings.Contains(strings.ToLower(job.Name), q) ||
			strings.Contains(strings.ToLower(job.Command), q) ||
			strings.Contains(strings.ToLower(job.Description), q) {
			filtered = append(filtered, job)
		}
	}
	return filtered
}

func (a App) selectedJob() *core.JobView {
	jobs := a.filteredJobs()
	if a.selectedIdx < len(jobs) {
		return &jobs[a.selectedIdx]
	}
	return nil
}
