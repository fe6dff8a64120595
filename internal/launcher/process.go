package launcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"FaceGrouping/internal/entity"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

const maxLineBytes = 64 * 1024

// process is one spawned worker. done is closed after the process has been
// reaped and both output streams are drained.
type process struct {
	workerID  int
	pid       int
	addr      string
	cmd       *exec.Cmd
	startedAt time.Time

	done    chan struct{}
	exitErr error
}

func (l *Launcher) spawn(workerID int) (*process, error) {
	port := l.cfg.BasePort + workerID
	addr := net.JoinHostPort(l.cfg.Host, strconv.Itoa(port))

	argv := ExpandCommand(l.cfg.Command, port, l.cfg.AppModule)
	if len(argv) == 0 {
		return nil, errors.New("worker command is empty")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = l.cfg.WorkDir
	cmd.Env = l.workerEnv(workerID, port)
	// Own process group so a kill reaches forked children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}

	p := &process{
		workerID:  workerID,
		pid:       cmd.Process.Pid,
		addr:      addr,
		cmd:       cmd,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}

	l.log.WithFields(logrus.Fields{
		"worker":  workerID,
		"pid":     p.pid,
		"address": addr,
		"command": strings.Join(argv, " "),
	}).Info("Worker process spawned")

	go p.reap(l, stdout, stderr)

	return p, nil
}

func (p *process) reap(l *Launcher, stdout, stderr io.Reader) {
	var g errgroup.Group
	g.Go(func() error { return l.pump(p, "stdout", stdout) })
	g.Go(func() error { return l.pump(p, "stderr", stderr) })
	if err := g.Wait(); err != nil {
		l.log.WithFields(logrus.Fields{
			"worker": p.workerID,
			"pid":    p.pid,
			"error":  err.Error(),
		}).Warn("Worker output stream ended with error")
	}

	p.exitErr = p.cmd.Wait()
	close(p.done)
}

// pump forwards every line of r as soon as it is complete.
func (l *Launcher) pump(p *process, stream string, r io.Reader) error {
	reader := bufio.NewReaderSize(r, maxLineBytes)
	for {
		line, err := reader.ReadString('\n')
		if text := strings.TrimRight(line, "\r\n"); text != "" {
			l.forward(p, stream, text)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (l *Launcher) forward(p *process, stream, text string) {
	entry := l.log.WithFields(logrus.Fields{
		"worker": p.workerID,
		"pid":    p.pid,
		"stream": stream,
	})
	if stream == "stderr" {
		entry.Warn(text)
	} else {
		entry.Info(text)
	}

	if l.sink != nil {
		l.sink.Publish(entity.WorkerLogLine{
			WorkerID: p.workerID,
			PID:      p.pid,
			Stream:   stream,
			Text:     text,
			Time:     time.Now(),
		})
	}
}

// waitReady polls the worker address until it accepts a TCP connection.
func (p *process) waitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		conn, err := net.DialTimeout("tcp", p.addr, time.Second)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return fmt.Errorf("worker exited before becoming ready: %s", describeExit(p.exitErr))
		case <-deadline.C:
			return fmt.Errorf("worker not accepting connections on %s after %s", p.addr, timeout)
		case <-ticker.C:
		}
	}
}

func (p *process) signal(sig syscall.Signal) {
	if err := unix.Kill(-p.pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		_ = p.cmd.Process.Signal(sig)
	}
}

func (p *process) kill() {
	p.signal(unix.SIGKILL)
}

// terminate asks the process group to exit and kills it after grace.
func (p *process) terminate(grace time.Duration) {
	select {
	case <-p.done:
		return
	default:
	}

	p.signal(unix.SIGTERM)

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.done:
	case <-timer.C:
		p.kill()
		<-p.done
	}
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (l *Launcher) workerEnv(workerID, port int) []string {
	env := append([]string{}, os.Environ()...)
	env = append(env, l.cfg.Env...)
	env = append(env,
		"APP_MODULE="+l.cfg.AppModule,
		"WORKER_ID="+strconv.Itoa(workerID),
		"WORKER_PORT="+strconv.Itoa(port),
	)
	if l.cfg.Unbuffered {
		env = append(env, "PYTHONUNBUFFERED=1")
	}
	return env
}

// ExpandCommand substitutes {port} and {app} in every argv token.
func ExpandCommand(argv []string, port int, app string) []string {
	out := make([]string, 0, len(argv))
	for _, arg := range argv {
		arg = strings.ReplaceAll(arg, "{port}", strconv.Itoa(port))
		arg = strings.ReplaceAll(arg, "{app}", app)
		out = append(out, arg)
	}
	return out
}

func describeExit(err error) string {
	if err == nil {
		return "exit status 0"
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return "killed by " + status.Signal().String()
		}
	}
	return err.Error()
}
