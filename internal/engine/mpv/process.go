package mpv

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	socketWaitRetries = 20
	socketWaitDelay   = 100 * time.Millisecond
	quitGrace         = 2 * time.Second
)

// process is one idle mpv child listening on a private IPC socket.
type process struct {
	cmd    *exec.Cmd
	socket string
	exited chan struct{}
	log    *slog.Logger
}

// processArgs builds the command line of an idle, windowless-by-default mpv.
func processArgs(socket string, extra []string) []string {
	args := []string{
		"--idle=yes",
		"--no-terminal",
		"--keep-open=no",
		"--input-ipc-server=" + socket,
	}
	return append(args, extra...)
}

// startProcess launches mpv and dials its IPC socket.
func startProcess(bin string, extra []string, log *slog.Logger) (*process, net.Conn, error) {
	socket := filepath.Join(os.TempDir(), "playerbridge-"+uuid.NewString()[:8]+".sock")

	cmd := exec.Command(bin, processArgs(socket, extra)...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start mpv: %w", err)
	}

	p := &process{cmd: cmd, socket: socket, exited: make(chan struct{}), log: log}
	go func() {
		_ = cmd.Wait()
		close(p.exited)
	}()

	conn, err := p.dial()
	if err != nil {
		p.kill()
		return nil, nil, err
	}
	log.Debug("mpv started", "pid", cmd.Process.Pid, "socket", socket)
	return p, conn, nil
}

// dial polls until the socket accepts connections or mpv exits.
func (p *process) dial() (net.Conn, error) {
	var lastErr error
	for i := 0; i < socketWaitRetries; i++ {
		select {
		case <-p.exited:
			return nil, fmt.Errorf("mpv exited before its socket was ready")
		case <-time.After(socketWaitDelay):
		}
		conn, err := net.Dial("unix", p.socket)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("mpv socket %s not ready: %w", p.socket, lastErr)
}

// shutdown waits briefly for a requested quit, then kills.
func (p *process) shutdown() {
	select {
	case <-p.exited:
	case <-time.After(quitGrace):
		p.log.Warn("mpv did not quit, killing", "pid", p.cmd.Process.Pid)
		p.kill()
	}
	_ = os.Remove(p.socket)
}

func (p *process) kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	<-p.exited
	_ = os.Remove(p.socket)
}
