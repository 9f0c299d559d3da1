// Package cmdparse derives facts about a raw shell command string
// without invoking a shell: the script or executable the command runs,
// and the files its redirections write to. Both extractors are pure,
// allocation-light, single-pass, and safe to call on every keystroke of
// an interactive form.
package cmdparse

// DefaultInterpreters are the runtime names that take a script path as
// their first argument.
var DefaultInterpreters = []string{"node", "python", "python3", "bash", "sh", "php", "ruby", "perl"}

// DefaultDevices are redirection targets that are never real log files.
var DefaultDevices = []string{"/dev/null", "/dev/stdout", "/dev/stderr"}

// Extractor holds the lookup sets the extraction rules consult. Both
// sets are plain data so callers can extend them without touching the
// scanning logic.
type Extractor struct {
	Interpreters map[string]struct{}
	Devices      map[string]struct{}
}

// New returns an Extractor with the default interpreter and device sets.
func New() *Extractor {
	return &Extractor{
		Interpreters: toSet(DefaultInterpreters),
		Devices:      toSet(DefaultDevices),
	}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// ScriptPath returns the path (or bare name) of the program the command
// invokes. If the first word is a known interpreter, the script is its
// next word. ok is false when no path can be determined: empty input,
// or an interpreter with no script argument. Quotes delimiting the word
// are never part of the result.
func (e *Extractor) ScriptPath(command string) (string, bool) {
	sc := newScanner(command)

	first, ok := nextWord(sc)
	if !ok {
		return "", false
	}
	if _, isInterp := e.Interpreters[first]; !isInterp {
		return first, true
	}
	second, ok := nextWord(sc)
	if !ok {
		return "", false
	}
	return second, true
}

// LogFiles returns the redirection target paths of the command, in
// order of first appearance, without duplicates. Device targets and fd
// duplications are excluded. The result is never nil; a command without
// redirections yields an empty slice. Pipes and logical connectors do
// not stop the scan, so every clause of a composed command contributes.
func (e *Extractor) LogFiles(command string) []string {
	files := []string{}
	var seen map[string]struct{}

	sc := newScanner(command)
	pending := false
	for {
		tok, ok := sc.next()
		if !ok {
			break
		}
		switch tok.kind {
		case tokenOp:
			if tok.text == "2>&1" {
				// Stream duplication, not a file target. Consumed
				// wherever it appears.
				continue
			}
			pending = true
		case tokenSep:
			// A connector ends the clause; a dangling operator before
			// it had no target.
			pending = false
		case tokenWord:
			if !pending {
				continue
			}
			pending = false
			target := tok.text
			if target == "" || target[0] == '&' {
				continue
			}
			if _, dev := e.Devices[target]; dev {
				continue
			}
			if seen == nil {
				seen = make(map[string]struct{})
			}
			if _, dup := seen[target]; dup {
				continue
			}
			seen[target] = struct{}{}
			files = append(files, target)
		}
	}
	return files
}

// nextWord advances the scanner to the next word token, skipping
// operators.
func nextWord(sc *scanner) (string, bool) {
	for {
		tok, ok := sc.next()
		if !ok {
			return "", false
		}
		if tok.kind == tokenWord {
			return tok.text, true
		}
	}
}

var defaultExtractor = New()

// ScriptPath applies the default extractor. See Extractor.ScriptPath.
func ScriptPath(command string) (string, bool) {
	return defaultExtractor.ScriptPath(command)
}

// LogFiles applies the default extractor. See Extractor.LogFiles.
func LogFiles(command string) []string {
	return defaultExtractor.LogFiles(command)
}
