package proc

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestStartAndWait(t *testing.T) {
	requireShell(t)

	h, err := Start("sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code := h.ExitCode(); code != 0 {
		t.Errorf("exit code = %d", code)
	}
	if got := strings.TrimSpace(string(h.Output())); got != "hello" {
		t.Errorf("output = %q", got)
	}
}

func TestNonzeroExit(t *testing.T) {
	requireShell(t)

	h, err := Start("sh", "-c", "echo oops >&2; exit 3")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.Wait(ctx); err == nil {
		t.Fatal("Wait returned nil for a failing process")
	}
	if code := h.ExitCode(); code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if !strings.Contains(string(h.Stderr()), "oops") {
		t.Errorf("stderr = %q", h.Stderr())
	}
}

func TestTerminate(t *testing.T) {
	requireShell(t)

	h, err := Start("sh", "-c", "sleep 30")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h.Exited() {
		t.Fatal("process reported exited immediately")
	}
	if code := h.ExitCode(); code != -1 {
		t.Errorf("exit code before exit = %d, want -1", code)
	}

	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	select {
	case <-h.Done():
	case <-time.After(10 * time.Second):
		h.Kill()
		t.Fatal("process did not exit after Terminate")
	}
	if err := h.Wait(context.Background()); err == nil {
		t.Error("Wait returned nil for a terminated process")
	}
}

func TestKill(t *testing.T) {
	requireShell(t)

	h, err := Start("sh", "-c", "trap '' TERM; sleep 30")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	select {
	case <-h.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process survived Kill")
	}
}

func TestSignalAfterExit(t *testing.T) {
	requireShell(t)

	h, err := Start("sh", "-c", "true")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-h.Done()

	if err := h.Terminate(); err != nil {
		t.Errorf("Terminate after exit: %v", err)
	}
	if err := h.Kill(); err != nil {
		t.Errorf("Kill after exit: %v", err)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	requireShell(t)

	h, err := Start("sh", "-c", "sleep 30")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		h.Kill()
		<-h.Done()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := h.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}
}

func TestStartMissingBinary(t *testing.T) {
	if _, err := Start("savewatch-test-no-such-binary"); err == nil {
		t.Fatal("Start succeeded for a missing binary")
	}
}
