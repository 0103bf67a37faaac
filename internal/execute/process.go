package execute

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"mvx/internal/progress"
)

// processKillGrace bounds how long Wait lingers on output pipes still held
// by helpers once the backend has exited or been killed.
const processKillGrace = 5 * time.Second

type runSpec struct {
	binary string
	args   []string
	// parser consumes stdout when the backend writes a progress stream.
	parser *progress.Parser
	// tick emits elapsed-only events for backends without one.
	tick time.Duration
	sink *progress.Sink
	diag *diagnostics
	// waitDelay overrides processKillGrace when positive.
	waitDelay time.Duration
}

// runProcess starts the backend in its own process group and drains both
// streams concurrently until it exits. The returned error is the raw
// exec error; classification is the caller's job.
//
// Output goes through io.Pipe writers rather than StdoutPipe so that Wait
// owns the OS pipes and gives up on them after WaitDelay, even when a
// helper that inherited them outlives the backend.
func runProcess(ctx context.Context, spec runSpec) error {
	cmd := exec.CommandContext(ctx, spec.binary, spec.args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative pid signals the whole group so helpers like soffice.bin
		// die with their launcher.
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = processKillGrace
	if spec.waitDelay > 0 {
		cmd.WaitDelay = spec.waitDelay
	}

	stdout, stdoutW := io.Pipe()
	stderr, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	if err := cmd.Start(); err != nil {
		_ = stdoutW.Close()
		_ = stderrW.Close()
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if spec.parser != nil {
			spec.parser.Stream(ctx, stdout, spec.sink.Publish)
			_, _ = io.Copy(io.Discard, stdout)
			return
		}
		drainLines(stdout, spec.diag)
	}()
	go func() {
		defer wg.Done()
		drainLines(stderr, spec.diag)
	}()

	stopTicker := make(chan struct{})
	tickerDone := make(chan struct{})
	if spec.parser == nil && spec.tick > 0 {
		ticker := progress.NewParser(0)
		go func() {
			defer close(tickerDone)
			t := time.NewTicker(spec.tick)
			defer t.Stop()
			for {
				select {
				case <-stopTicker:
					return
				case <-t.C:
					spec.sink.Publish(ticker.Tick())
				}
			}
		}()
	} else {
		close(tickerDone)
	}

	err := cmd.Wait()
	_ = stdoutW.Close()
	_ = stderrW.Close()
	wg.Wait()
	close(stopTicker)
	<-tickerDone
	if errors.Is(err, exec.ErrWaitDelay) {
		// The backend exited cleanly; only a straggling helper kept the
		// pipes open.
		return nil
	}
	return err
}

func drainLines(r io.Reader, diag *diagnostics) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 256*1024)
	for scanner.Scan() {
		diag.add(scanner.Text())
	}
	_, _ = io.Copy(io.Discard, r)
}

// exitCode extracts the process status, or -1 when the process never
// reported one (killed, failed to start).
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
