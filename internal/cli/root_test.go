package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aristath/autodev/internal/config"
	"github.com/aristath/autodev/internal/orchestrator"
)

func executeCommand(args ...string) (string, error) {
	resetFlags(rootCmd)
	configPath = ""

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag in the tree, since the commands are package globals.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// isolateHome points the global config path at an empty directory.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

const (
	fakePlanning = `{"status":"success","execution_time_seconds":0.5,"architecture":{
		"database":{"tables":[{"name":"users","columns":[{"name":"id","type":"UUID"}]}]},
		"backend":{"endpoints":[{"method":"POST","path":"/api/login"}]},
		"frontend":{"components":["LoginForm"]}}}`
	fakeCode    = `{"status":"success","task_id":"t","generated_files":[{"file_path":"a.go","content":"","language":"go"}]}`
	fakeTesting = `{"status":"success","task_id":"t","total_tests":12,"coverage":75,"tests_passed":true,"test_files":[]}`
)

// fakeAgents serves every agent from one server.
func fakeAgents(t *testing.T, healthy bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if healthy {
			w.Write([]byte(`{"status":"healthy"}`))
			return
		}
		w.Write([]byte(`{"status":"degraded"}`))
	})
	mux.HandleFunc("POST /agents/{name}", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.PathValue("name") {
		case "planning":
			w.Write([]byte(fakePlanning))
		case "testing":
			w.Write([]byte(fakeTesting))
		default:
			w.Write([]byte(fakeCode))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

// writeAgentConfig writes a YAML config pointing every pipeline agent at addr.
func writeAgentConfig(t *testing.T, addr string) string {
	t.Helper()
	cfg := config.DefaultConfig()
	for _, name := range config.PipelineAgents {
		a := cfg.Agents[name]
		a.Address = addr
		cfg.Agents[name] = a
	}
	path := filepath.Join(t.TempDir(), "autodev.yaml")
	if err := config.Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	SetVersion("test-version")
	out, err := executeCommand("version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "test-version") {
		t.Errorf("expected version output to contain 'test-version', got: %s", out)
	}
}

func TestRootHelp(t *testing.T) {
	out, err := executeCommand("--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, sub := range []string{"dashboard", "run", "serve", "health", "config", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing subcommand %q", sub)
		}
	}
}

func TestConfigSubcommands(t *testing.T) {
	for _, sub := range []string{"init", "validate", "show"} {
		out, err := executeCommand("config", sub, "--help")
		if err != nil {
			t.Errorf("config %s --help failed: %v", sub, err)
		}
		if out == "" {
			t.Errorf("config %s --help produced no output", sub)
		}
	}
}

func TestConfigInitAndShow(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := executeCommand("config", "init", path)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("init output = %q", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	// A second init refuses to overwrite
	if _, err := executeCommand("config", "init", path); err == nil {
		t.Error("expected error when config exists")
	}
	if _, err := executeCommand("config", "init", "--force", path); err != nil {
		t.Errorf("init --force failed: %v", err)
	}

	out, err = executeCommand("config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{"planning:", "http://localhost:8000", "stage_timeout: 30s", "complexity: medium"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"health":{"interval":"soon"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := executeCommand("config", "validate", "--config", path); err == nil {
		t.Error("expected validation error")
	}
}

func TestHealthCommand(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name    string
		healthy bool
		args    []string
		wantErr bool
		want    string
	}{
		{"table", true, nil, false, "healthy"},
		{"json", true, []string{"--json"}, false, `"planning": "healthy"`},
		{"strict passes", true, []string{"--strict"}, false, "healthy"},
		{"strict fails", false, []string{"--strict"}, true, "unhealthy"},
		{"lenient", false, nil, false, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := fakeAgents(t, tt.healthy)
			path := writeAgentConfig(t, srv.URL)

			args := append([]string{"health", "--config", path}, tt.args...)
			out, err := executeCommand(args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestRunCommand(t *testing.T) {
	isolateHome(t)
	srv, calls := fakeAgents(t, true)
	path := writeAgentConfig(t, srv.URL)

	out, err := executeCommand("run", "--config", path,
		"--title", "User Authentication",
		"--criteria", "User can log in\nUser can log out",
		"--wait-healthy", "5s")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	if got := calls.Load(); got != 5 {
		t.Errorf("agent calls = %d, want 5", got)
	}
	for _, want := range []string{`"story_id": "US-`, `"total_tests": 12`, "Generated 1 database files"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunCommandCriteriaFile(t *testing.T) {
	isolateHome(t)
	srv, _ := fakeAgents(t, true)
	path := writeAgentConfig(t, srv.URL)

	criteria := filepath.Join(t.TempDir(), "criteria.txt")
	if err := os.WriteFile(criteria, []byte("One\n\nTwo\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := executeCommand("run", "--config", path, "--title", "Story", "--criteria-file", criteria)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	if _, err := executeCommand("run", "--title", "Story", "--criteria", "a", "--criteria-file", criteria); err == nil {
		t.Error("expected error for --criteria with --criteria-file")
	}
}

func TestRunCommandRequiresTitle(t *testing.T) {
	isolateHome(t)
	_, err := executeCommand("run", "--criteria", "something")
	if err == nil || !strings.Contains(err.Error(), orchestrator.ErrInvalidStory.Error()) {
		t.Errorf("err = %v, want ErrInvalidStory", err)
	}
}

func TestRunCommandStageFailure(t *testing.T) {
	isolateHome(t)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /agents/{name}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"planner exploded"}`, http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	path := writeAgentConfig(t, srv.URL)

	out, err := executeCommand("run", "--config", path, "--title", "Story")
	if err == nil {
		t.Fatal("expected run to fail")
	}
	if !strings.Contains(err.Error(), "planner exploded") {
		t.Errorf("err = %v", err)
	}
	if strings.Contains(out, `"story_id"`) {
		t.Errorf("failed run printed a result:\n%s", out)
	}
}
