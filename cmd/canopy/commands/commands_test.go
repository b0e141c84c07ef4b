// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/canopy/cmd/canopy/cli"
	"github.com/bureau-foundation/canopy/lib/clock"
	"github.com/bureau-foundation/canopy/lib/schema"
	"github.com/bureau-foundation/canopy/lib/service"
	"github.com/bureau-foundation/canopy/lib/settings"
	"github.com/bureau-foundation/canopy/lib/store"
	"github.com/bureau-foundation/canopy/lib/storeserver"
	"github.com/bureau-foundation/canopy/lib/testutil"
	"github.com/bureau-foundation/canopy/lib/urlcond"
)

// syncBuffer is a bytes.Buffer safe for a writer and a poller.
type syncBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

func (b *syncBuffer) waitFor(t *testing.T, substring string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(b.String(), substring) {
		if time.Now().After(deadline) {
			t.Fatalf("output never contained %q:\n%s", substring, b.String())
		}
		time.Sleep(time.Millisecond)
	}
}

func startDaemon(t *testing.T) (*store.Store, string) {
	t.Helper()
	t.Setenv("CANOPY_CONFIG", "")
	backing, err := store.New(store.Config{Persister: store.Memory()})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	socketPath := testutil.SocketPath(t)
	socket := service.NewSocketServer(socketPath, slog.New(slog.DiscardHandler))
	storeserver.New(storeserver.Config{
		Store:   backing,
		Clock:   clock.Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		Version: "test",
	}).Register(socket)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- socket.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-served
	})
	for {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		runtime.Gosched()
	}
	return backing, socketPath
}

// execute runs the command tree and returns stdout.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	var stdout, stderr bytes.Buffer
	err := Root().Execute(context.Background(), cli.IO{Stdin: stdin, Stdout: &stdout, Stderr: &stderr}, args)
	return stdout.String(), err
}

func decodeView(t *testing.T, output string) map[string]any {
	t.Helper()
	var decoded map[string]any
	if err := json.Unmarshal([]byte(output), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, output)
	}
	return decoded
}

func TestWriteThenRead(t *testing.T) {
	_, socketPath := startDaemon(t)

	output, err := execute(t, nil, "write", "--socket", socketPath, "ghostMode=true", `language="de"`)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	var written struct{ Changed []string }
	if err := json.Unmarshal([]byte(output), &written); err != nil {
		t.Fatalf("write output: %v\n%s", err, output)
	}
	if diff := cmp.Diff([]string{"ghostMode", "language"}, written.Changed); diff != "" {
		t.Errorf("changed fields (-want +got):\n%s", diff)
	}

	output, err = execute(t, nil, "read", "--socket", socketPath, "ghostMode", "language")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := map[string]any{"ghostMode": true, "language": "de"}
	if diff := cmp.Diff(want, decodeView(t, output)); diff != "" {
		t.Errorf("read (-want +got):\n%s", diff)
	}
}

func TestWriteRejectsBadAssignments(t *testing.T) {
	_, socketPath := startDaemon(t)
	for _, args := range [][]string{
		{"noequals"},
		{"language=de"},
		{"colour=true"},
		{"ghostMode=\"yes\""},
	} {
		if _, err := execute(t, nil, append([]string{"write", "--socket", socketPath}, args...)...); err == nil {
			t.Errorf("write %v succeeded", args)
		}
	}
}

func TestScopedWriteAndUnpin(t *testing.T) {
	backing, socketPath := startDaemon(t)

	if _, err := execute(t, nil, "write", "--socket", socketPath, "--context", "ctx-a", "speed=1.75"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := backing.Read(settings.MustFieldSet(settings.FieldSpeed), "ctx-a").Number(settings.FieldSpeed); got != 1.75 {
		t.Fatalf("scoped speed = %v, want 1.75", got)
	}

	if _, err := execute(t, nil, "unpin", "--socket", socketPath); err == nil {
		t.Fatal("unpin without --context succeeded")
	}
	if _, err := execute(t, nil, "unpin", "--socket", socketPath, "--context", "ctx-a"); err != nil {
		t.Fatalf("unpin: %v", err)
	}
	if got := backing.Read(settings.MustFieldSet(settings.FieldSpeed), "ctx-a").Number(settings.FieldSpeed); got != 1 {
		t.Fatalf("speed after unpin = %v, want the default", got)
	}
}

func TestImportAndExport(t *testing.T) {
	_, socketPath := startDaemon(t)

	export := filepath.Join(t.TempDir(), "settings.jsonc")
	content := `{
  // exported from another profile
  "darkTheme": true,
  "fontSize": 1.25,
}`
	if err := os.WriteFile(export, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, nil, "import", "--socket", socketPath, export); err != nil {
		t.Fatalf("import: %v", err)
	}

	output, err := execute(t, nil, "export", "--socket", socketPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	exported := decodeView(t, output)
	if exported["darkTheme"] != true || exported["fontSize"] != 1.25 {
		t.Fatalf("export = %v", exported)
	}
	if _, ok := exported["ghostMode"]; !ok {
		t.Fatal("export left out unset fields")
	}

	// The export reads back through ParseExport.
	if _, err := settings.ParseExport([]byte(output), false); err != nil {
		t.Fatalf("export is not importable: %v", err)
	}
}

func TestImportUnknownKeys(t *testing.T) {
	_, socketPath := startDaemon(t)
	stdin := `{"darkTheme": true, "keybinds": []}`

	if _, err := execute(t, strings.NewReader(stdin), "import", "--socket", socketPath, "-"); !errors.Is(err, settings.ErrUnknownField) {
		t.Fatalf("import error = %v, want ErrUnknownField", err)
	}
	if _, err := execute(t, strings.NewReader(stdin), "import", "--socket", socketPath, "--skip-unknown", "-"); err != nil {
		t.Fatalf("import --skip-unknown: %v", err)
	}
}

func TestStatus(t *testing.T) {
	_, socketPath := startDaemon(t)

	output, err := execute(t, nil, "status", "--socket", socketPath, "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status schema.Status
	if err := json.Unmarshal([]byte(output), &status); err != nil {
		t.Fatalf("status output: %v", err)
	}
	if status.Version != "test" {
		t.Errorf("version = %q, want test", status.Version)
	}

	_, err = execute(t, nil, "status", "--socket", testutil.SocketPath(t))
	var exit *cli.ExitError
	if !errors.As(err, &exit) || exit.Code != exitUnreachable {
		t.Fatalf("status against no daemon = %v, want exit %d", err, exitUnreachable)
	}
}

func TestReadFailsWithoutDaemon(t *testing.T) {
	t.Setenv("CANOPY_CONFIG", "")
	if _, err := execute(t, nil, "read", "--socket", testutil.SocketPath(t)); err == nil {
		t.Fatal("read succeeded without a daemon")
	}
}

func TestWatchStreamsChanges(t *testing.T) {
	backing, socketPath := startDaemon(t)

	var stdout syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Root().Execute(ctx, cli.IO{Stdin: strings.NewReader(""), Stdout: &stdout, Stderr: io.Discard},
			[]string{"watch", "--socket", socketPath, "ghostMode"})
	}()

	stdout.waitFor(t, `{"ghostMode":false}`)
	if _, err := backing.Write(settings.View{settings.FieldGhostMode: true}, ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	stdout.waitFor(t, `{"ghostMode":true}`)

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "watch did not stop"); err != nil {
		t.Fatalf("watch: %v", err)
	}
}

func TestAttachForcedSite(t *testing.T) {
	_, socketPath := startDaemon(t)

	stdinReader, stdinWriter := io.Pipe()
	defer stdinWriter.Close()
	var stdout syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- Root().Execute(context.Background(), cli.IO{Stdin: stdinReader, Stdout: &stdout, Stderr: io.Discard},
			[]string{"attach", "--socket", socketPath, "--url", "https://web.whatsapp.com/"})
	}()

	stdout.waitFor(t, `"directive":"ACTIVATE_GHOST","minimal":true`)
	stdout.waitFor(t, `"state":"active"`)
	stdout.waitFor(t, `"event":"view"`)

	if _, err := io.WriteString(stdinWriter, "hidden\n"); err != nil {
		t.Fatal(err)
	}
	stdout.waitFor(t, `"state":"hidden-pending"`)

	if _, err := io.WriteString(stdinWriter, "quit\n"); err != nil {
		t.Fatal(err)
	}
	if err := testutil.RequireReceive(t, done, 5*time.Second, "attach did not quit"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if !strings.Contains(stdout.String(), `"event":"overlay-released"`) {
		t.Fatalf("overlay not released on quit:\n%s", stdout.String())
	}
}

func TestAttachFlagOnIgnoresURLConditionForActivation(t *testing.T) {
	backing, socketPath := startDaemon(t)
	if _, err := backing.Write(settings.View{
		settings.FieldGhostMode: true,
		settings.FieldGhostModeURLCondition: &urlcond.Rule{
			Block: true,
			Parts: []urlcond.Part{{Mode: urlcond.ModeContains, Value: "example.com"}},
		},
	}, ""); err != nil {
		t.Fatal(err)
	}

	stdinReader, stdinWriter := io.Pipe()
	var stdout syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- Root().Execute(context.Background(), cli.IO{Stdin: stdinReader, Stdout: &stdout, Stderr: io.Discard},
			[]string{"attach", "--socket", socketPath, "--url", "https://example.com/watch"})
	}()

	stdout.waitFor(t, `"directive":"ACTIVATE_GHOST","minimal":false`)
	stdinWriter.Close()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "attach did not end"); err != nil {
		t.Fatalf("attach: %v", err)
	}
}

func TestAttachRequiresURL(t *testing.T) {
	_, socketPath := startDaemon(t)
	if _, err := execute(t, nil, "attach", "--socket", socketPath); err == nil {
		t.Fatal("attach without --url succeeded")
	}
}
