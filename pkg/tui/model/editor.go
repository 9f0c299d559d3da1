package model

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/cronium/pkg/cmdparse"
	"github.com/modoterra/cronium/pkg/core"
	"github.com/modoterra/cronium/pkg/transport/uds"
)

// Field order in the job editor form.
const (
	fieldName = iota
	fieldSchedule
	fieldCommand
	fieldDescription
	fieldCount
)

// EditorField is a named text input in the editor form.
type EditorField struct {
	Label string
	Input textinput.Model
}

// EditorModel is the inline job editor. The name and log file fields are
// derived from the command as the user types: the command's script path
// suggests a job name until the user edits the name themselves, and the
// first log file redirected to in the command fills a read-only display.
type EditorModel struct {
	fields      []EditorField
	activeIdx   int
	isNew       bool
	nameTouched bool
	logFile     string
	original    core.Job
}

// NewEditorForJob creates an editor pre-filled with an existing job.
func NewEditorForJob(job core.Job) *EditorModel {
	e := &EditorModel{
		fields:      jobFields(job),
		nameTouched: true,
		original:    job,
	}
	e.fields[0].Input.Focus()
	e.refreshDerived()
	return e
}

// NewEditorForNew creates a blank editor for adding a new job.
func NewEditorForNew() *EditorModel {
	e := &EditorModel{
		fields: jobFields(core.Job{}),
		isNew:  true,
	}
	e.fields[0].Input.Focus()
	return e
}

func jobFields(job core.Job) []EditorField {
	return []EditorField{
		newField("name", job.Name),
		newField("schedule", job.Schedule),
		newField("command", job.Command),
		newField("description", job.Description),
	}
}

func newField(label, value string) EditorField {
	ti := textinput.New()
	ti.Placeholder = label
	ti.SetValue(value)
	ti.CharLimit = 512
	return EditorField{Label: label, Input: ti}
}

// refreshDerived recomputes the fields that follow the command text.
func (e *EditorModel) refreshDerived() {
	command := e.fields[fieldCommand].Input.Value()

	if files := cmdparse.LogFiles(command); len(files) > 0 {
		e.logFile = files[0]
	} else {
		e.logFile = e.original.LogFile
	}

	if !e.nameTouched {
		if path, ok := cmdparse.ScriptPath(command); ok {
			e.fields[fieldName].Input.SetValue(SuggestJobName(path))
		}
	}
}

// genericScriptNames are file names too common to identify a job on
// their own; the parent directory is prepended for these.
var genericScriptNames = map[string]bool{
	"run":    true,
	"main":   true,
	"index":  true,
	"start":  true,
	"script": true,
	"job":    true,
	"cron":   true,
}

// SuggestJobName derives a job name from a script path: the file name
// without its extension, prefixed with the parent directory when the
// file name alone is generic.
func SuggestJobName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if genericScriptNames[base] {
		parent := filepath.Base(filepath.Dir(path))
		if parent != "." && parent != "/" && parent != "" {
			base = parent + "-" + base
		}
	}
	base = strings.ToLower(base)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '/' {
			return '-'
		}
		return r
	}, base)
}

// Job assembles the edited job. Fields the form does not expose (dir,
// env, disabled) carry over from the original.
func (e *EditorModel) Job() core.Job {
	job := e.original
	job.Name = strings.TrimSpace(e.fields[fieldName].Input.Value())
	job.Schedule = strings.TrimSpace(e.fields[fieldSchedule].Input.Value())
	job.Command = strings.TrimSpace(e.fields[fieldCommand].Input.Value())
	job.Description = strings.TrimSpace(e.fields[fieldDescription].Input.Value())
	job.LogFile = e.logFile
	return job
}

// HandleKey processes key events in editor mode.
func (e *EditorModel) HandleKey(a App, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = ModeNormal
		a.editor = nil
		return a, nil

	case "enter":
		job := e.Job()
		if job.Name == "" {
			a.statusMsg = "job name is required"
			return a, nil
		}
		if a.client == nil {
			a.statusMsg = "not connected"
			return a, nil
		}
		method := uds.MethodUpdateJob
		if e.isNew {
			method = uds.MethodCreateJob
		}
		a.mode = ModeNormal
		a.editor = nil
		a.statusMsg = "saving " + job.Name + "..."
		return a, saveJobCmd(a.client, method, job)

	case "tab":
		e.fields[e.activeIdx].Input.Blur()
		e.activeIdx = (e.activeIdx + 1) % len(e.fields)
		e.fields[e.activeIdx].Input.Focus()
		return a, textinput.Blink

	case "shift+tab":
		e.fields[e.activeIdx].Input.Blur()
		e.activeIdx = (e.activeIdx - 1 + len(e.fields)) % len(e.fields)
		e.fields[e.activeIdx].Input.Focus()
		return a, textinput.Blink

	default:
		if e.activeIdx == fieldName {
			e.nameTouched = true
		}
		var cmd tea.Cmd
		e.fields[e.activeIdx].Input, cmd = e.fields[e.activeIdx].Input.Update(msg)
		if e.activeIdx == fieldCommand {
			e.refreshDerived()
		}
		return a, cmd
	}
}

// View renders the editor form.
func (e *EditorModel) View(width int) string {
	title := "Edit Job"
	if e.isNew {
		title = "New Job"
	}

	s := titleStyle.Render(" "+title+" ") + "\n\n"
	for i, f := range e.fields {
		prefix := "  "
		if i == e.activeIdx {
			prefix = "▸ "
		}
		s += prefix + dimStyle.Render(f.Label+": ") + f.Input.View() + "\n"
	}

	logFile := e.logFile
	if logFile == "" {
		logFile = "(none)"
	}
	s += "  " + dimStyle.Render("log file: "+logFile) + "\n"

	s += "\n" + helpStyle.Render("  tab:next  shift+tab:prev  enter:save  esc:cancel")
	return s
}
