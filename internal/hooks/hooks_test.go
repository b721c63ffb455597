package hooks

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestRunHook(t *testing.T) {
	// Determine a portable true/false command
	trueCmd := "true"
	falseCmd := "false"
	if runtime.GOOS == "windows" {
		trueCmd = "cmd /c exit 0"
		falseCmd = "cmd /c exit 1"
	}

	tests := []struct {
		name      string
		hook      Hook
		wantErr   bool
		errSubstr string
	}{
		{
			name:    "happy path - command succeeds",
			hook:    Hook{Command: trueCmd},
			wantErr: false,
		},
		{
			name:      "empty command returns error",
			hook:      Hook{Command: ""},
			wantErr:   true,
			errSubstr: "empty command",
		},
		{
			name:      "whitespace-only command returns error",
			hook:      Hook{Command: "   "},
			wantErr:   true,
			errSubstr: "empty command",
		},
		{
			name:    "non-zero exit with error_on_fail true returns error",
			hook:    Hook{Command: falseCmd, ErrorOnFail: true},
			wantErr: true,
		},
		{
			name:    "non-zero exit with error_on_fail false continues",
			hook:    Hook{Command: falseCmd, ErrorOnFail: false},
			wantErr: false,
		},
		{
			name:    "custom acceptable exit codes",
			hook:    Hook{Command: falseCmd, ExitCodes: []int{1}, ErrorOnFail: true},
			wantErr: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &Runner{Verbose: false}
			err := r.runHook(context.Background(), "test", 0, tc.hook)

			if tc.wantErr && err == nil {
				t.Fatalf("expected error but got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.errSubstr != "" && err != nil {
				if got := err.Error(); !strings.Contains(got, tc.errSubstr) {
					t.Errorf("error %q does not contain %q", got, tc.errSubstr)
				}
			}
		})
	}
}

func TestRunHook_EnvPassing(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}

	outFile := filepath.Join(t.TempDir(), "env.txt")
	r := &Runner{
		Env: map[string]string{"DROVER_RUN_ID": "run-42"},
	}

	hook := Hook{Command: "sh -c printenv_DROVER_RUN_ID"}
	// strings.Fields would split a quoted shell script, so use a helper script file.
	script := filepath.Join(t.TempDir(), "hook.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nprintenv DROVER_RUN_ID > "+outFile+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	hook.Command = script

	if err := r.runHook(context.Background(), "before_run", 0, hook); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("reading hook output: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "run-42" {
		t.Errorf("DROVER_RUN_ID = %q, want %q", got, "run-42")
	}
}

func TestExecute_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	r := &Runner{Verbose: false}
	hooks := []Hook{
		{Command: "echo hello"},
	}

	err := r.Execute(ctx, "test", hooks)
	if err == nil {
		t.Fatal("expected context cancellation error but got nil")
	}

	if got := err.Error(); !strings.Contains(got, "context canceled") {
		t.Errorf("error %q does not mention context cancellation", got)
	}
}

func TestExecute_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond) // ensure timeout fires

	r := &Runner{Verbose: false}
	hooks := []Hook{
		{Command: "echo hello"},
	}

	err := r.Execute(ctx, "test", hooks)
	if err == nil {
		t.Fatal("expected context timeout error but got nil")
	}
}

func TestConfigEmpty(t *testing.T) {
	if !(Config{}).Empty() {
		t.Error("zero Config should be empty")
	}
	cfg := Config{AfterRecord: []Hook{{Command: "true"}}}
	if cfg.Empty() {
		t.Error("Config with an after_record hook should not be empty")
	}
}
