package cmdparse

import (
	"reflect"
	"strings"
	"testing"
)

func TestScriptPathDirect(t *testing.T) {
	tests := []struct {
		command string
		want    string
		wantOK  bool
	}{
		{"node /app/index.js", "/app/index.js", true},
		{"python3 /opt/tasks/cleanup.py --verbose", "/opt/tasks/cleanup.py", true},
		{"bash ./backup.sh", "./backup.sh", true},
		{"sh ../scripts/rotate.sh daily", "../scripts/rotate.sh", true},
		{"php /var/www/artisan schedule:run", "/var/www/artisan", true},
		{"ruby worker.rb", "worker.rb", true},
		{"perl /usr/lib/report.pl", "/usr/lib/report.pl", true},
		{"/usr/local/bin/backup.sh --full", "/usr/local/bin/backup.sh", true},
		{"./script.sh > /var/log/out.log", "./script.sh", true},
		{"echo \"Hello World\"", "echo", true},
		{"echo hello", "echo", true},
		{"", "", false},
		{"   \t  ", "", false},
		{"node", "", false},
		{"python3   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got, ok := ScriptPath(tt.command)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScriptPathQuoting(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{"node '/app/my script.js'", "/app/my script.js"},
		{"node \"/app/my script.js\" --flag", "/app/my script.js"},
		{"'/opt/spaced dir/run.sh' arg", "/opt/spaced dir/run.sh"},
		{"bash '/backups/daily run.sh' >> /var/log/b.log", "/backups/daily run.sh"},
		// Unterminated quote degrades to the rest of the string.
		{"node '/app/broken.js", "/app/broken.js"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got, ok := ScriptPath(tt.command)
			if !ok {
				t.Fatal("expected ok")
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if strings.ContainsAny(got, "'\"") {
				t.Errorf("result contains quote characters: %q", got)
			}
		})
	}
}

func TestScriptPathStopsAtFirstRedirect(t *testing.T) {
	got, ok := ScriptPath("./script.sh>out.log")
	if !ok || got != "./script.sh" {
		t.Errorf("got %q (ok=%v), want ./script.sh", got, ok)
	}
}

func TestScriptPathCustomInterpreters(t *testing.T) {
	e := New()
	e.Interpreters["deno"] = struct{}{}

	got, ok := e.ScriptPath("deno /app/main.ts")
	if !ok || got != "/app/main.ts" {
		t.Errorf("got %q (ok=%v), want /app/main.ts", got, ok)
	}

	// The default extractor is unaffected.
	got, ok = ScriptPath("deno /app/main.ts")
	if !ok || got != "deno" {
		t.Errorf("default: got %q (ok=%v), want deno", got, ok)
	}
}

func TestLogFilesBasic(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    []string
	}{
		{
			"append after dup",
			"/bin/script.sh 2>&1 >> /var/log/combined.log",
			[]string{"/var/log/combined.log"},
		},
		{
			"stdout and stderr to separate files",
			"./script.sh > /var/log/output.log 2> /var/log/error.log",
			[]string{"/var/log/output.log", "/var/log/error.log"},
		},
		{
			"same file in both clauses dedups",
			"cmd1 >> /var/log/app.log && cmd2 >> /var/log/app.log",
			[]string{"/var/log/app.log"},
		},
		{
			"operator glued to path",
			"./script.sh >>/var/log/app.log",
			[]string{"/var/log/app.log"},
		},
		{
			"dup after append",
			"./script.sh >> /var/log/app.log 2>&1",
			[]string{"/var/log/app.log"},
		},
		{
			"ampersand redirect",
			"backup.sh &> /var/log/backup.log",
			[]string{"/var/log/backup.log"},
		},
		{
			"stderr append",
			"job.sh 2>> /var/log/job.err",
			[]string{"/var/log/job.err"},
		},
		{
			"collects across pipes and semicolons",
			"du -sh /data | sort -h > /tmp/sizes.txt; sync 2> /tmp/sync.err",
			[]string{"/tmp/sizes.txt", "/tmp/sync.err"},
		},
		{
			"semicolon glued to target",
			"a > /tmp/x.log; b",
			[]string{"/tmp/x.log"},
		},
		{
			"connector glued to target",
			"a > /tmp/x.log&& b",
			[]string{"/tmp/x.log"},
		},
		{
			"pipe glued to target",
			"a > /tmp/x.log|grep x",
			[]string{"/tmp/x.log"},
		},
		{
			"background marker glued to target",
			"a > /tmp/x.log&",
			[]string{"/tmp/x.log"},
		},
		{
			"no redirection",
			"echo hello world",
			[]string{},
		},
		{
			"empty input",
			"",
			[]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFiles(tt.command)
			if got == nil {
				t.Fatal("result must never be nil")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogFilesDeviceFiltering(t *testing.T) {
	tests := []struct {
		command string
		want    []string
	}{
		{"cmd > /dev/null", []string{}},
		{"cmd > /dev/null 2>&1", []string{}},
		{"cmd > /dev/stdout 2> /dev/stderr", []string{}},
		{"cmd > /var/log/a.log 2> /dev/null", []string{"/var/log/a.log"}},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got := LogFiles(tt.command)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogFilesDupNeverMisparsed(t *testing.T) {
	for _, command := range []string{
		"cmd 2>&1",
		"cmd 2>&1 | tee",
		"cmd >> /var/log/x.log 2>&1",
		"cmd 2>&1 >> /var/log/x.log",
	} {
		for _, f := range LogFiles(command) {
			if f == "&1" || strings.ContainsRune(f, '&') {
				t.Errorf("%q: fd duplication leaked into result: %q", command, f)
			}
		}
	}
}

func TestLogFilesFdDuplicationTargets(t *testing.T) {
	// ">&2"-style targets are duplications, not files.
	got := LogFiles("cmd >&2")
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestLogFilesQuotedTargets(t *testing.T) {
	got := LogFiles("run.sh >> '/var/log/my app.log'")
	want := []string{"/var/log/my app.log"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLogFilesOrderIsFirstOccurrence(t *testing.T) {
	got := LogFiles("a > /l/1 2> /l/2 && b > /l/2 2> /l/1 > /l/3")
	want := []string{"/l/1", "/l/2", "/l/3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLogFilesNoMetacharactersInResults(t *testing.T) {
	commands := []string{
		"cmd >>out.log 2>>err.log",
		"cmd > \"quoted.log\"",
		"a && b > x.log; c | d 2> y.log",
		"a > x.log&& b > y.log;c > z.log&",
	}
	for _, command := range commands {
		for _, f := range LogFiles(command) {
			if strings.ContainsAny(f, ">&'\";|") {
				t.Errorf("%q: metacharacter in result %q", command, f)
			}
		}
	}
}

func TestExtractorsAreDeterministic(t *testing.T) {
	command := "bash '/opt/x y.sh' > /l/a 2> /l/b && z >> /l/a"
	first := LogFiles(command)
	for i := 0; i < 10; i++ {
		if got := LogFiles(command); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: got %v, want %v", i, got, first)
		}
	}
	p1, _ := ScriptPath(command)
	for i := 0; i < 10; i++ {
		if p, _ := ScriptPath(command); p != p1 {
			t.Fatalf("run %d: got %q, want %q", i, p, p1)
		}
	}
}
