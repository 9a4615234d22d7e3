//go:build linux

package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/Swind/go-bsio/config"
	"github.com/Swind/go-bsio/core"
	"github.com/Swind/go-bsio/coro"
	"github.com/Swind/go-bsio/reactor"
)

func newEchoCommand(d *demo) *cobra.Command {
	var (
		clients int
		message string
	)
	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Run an echo server and its clients as coroutines on one reactor.",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := runEcho(cmd.Context(), d.cfg, d.logger, clients, message)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "echoed=%d\n", n)
			return nil
		},
	}
	cmd.Flags().IntVarP(&clients, "clients", "n", 16, "Number of client coroutines.")
	cmd.Flags().StringVarP(&message, "message", "m", "hello", "Payload each client sends.")
	return cmd
}

// runEcho serves clients connections on a loopback listener. The server,
// every connection handler and every client are coroutines of a single
// Environment, all driven by one reactor loop on the calling goroutine.
func runEcho(ctx context.Context, cfg *config.Config, logger core.Logger, clients int, message string) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	env := coro.NewEnvironment(cfg.CoroutineOptions(logger))
	defer env.Close()

	rc := cfg.ReactorOptions(logger)
	r, err := reactor.New(env, rc)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	lfd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, errors.Wrap(err, "socket")
	}
	defer unix.Close(lfd)
	if err := unix.SetsockoptInt(lfd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return 0, errors.Wrap(err, "setsockopt")
	}
	if err := unix.Bind(lfd, &unix.SockaddrInet4{Addr: [4]byte{127, 0, 0, 1}}); err != nil {
		return 0, errors.Wrap(err, "bind")
	}
	if err := unix.Listen(lfd, clients); err != nil {
		return 0, errors.Wrap(err, "listen")
	}
	addr, err := unix.Getsockname(lfd)
	if err != nil {
		return 0, errors.Wrap(err, "getsockname")
	}

	ctx = reactor.WithReactor(ctx, r)
	accepted := 0
	server := env.Create(ctx, func(ctx context.Context) {
		for accepted < clients {
			nfd, _, err := r.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
			if err != nil {
				logger.Warn("accept failed", core.F("error", err))
				return
			}
			accepted++
			env.Create(ctx, func(ctx context.Context) {
				serveEcho(ctx, nfd, logger)
			}).Resume()
		}
	})

	var (
		finished int
		echoed   int
		failure  error
	)
	payload := []byte(message)
	server.Resume()
	for i := 0; i < clients; i++ {
		env.Create(ctx, func(ctx context.Context) {
			defer func() { finished++ }()
			ok, err := echoClient(ctx, addr, payload)
			if err != nil && failure == nil {
				failure = err
			}
			if ok {
				echoed++
			}
		}).Resume()
	}

	for finished < clients {
		if err := ctx.Err(); err != nil {
			return echoed, err
		}
		if _, err := r.RunOnce(rc.Timeout); err != nil {
			return echoed, err
		}
	}
	return echoed, failure
}

func serveEcho(ctx context.Context, fd int, logger core.Logger) {
	r := reactor.FromContext(ctx)
	defer unix.Close(fd)

	buf := make([]byte, 4096)
	for {
		n, err := r.Read(fd, buf)
		if err != nil {
			logger.Warn("read failed", core.F("fd", fd), core.F("error", err))
			return
		}
		if n == 0 {
			return
		}
		if _, err := r.Write(fd, buf[:n]); err != nil {
			logger.Warn("write failed", core.F("fd", fd), core.F("error", err))
			return
		}
	}
}

func echoClient(ctx context.Context, addr unix.Sockaddr, payload []byte) (bool, error) {
	r := reactor.FromContext(ctx)
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return false, errors.Wrap(err, "socket")
	}
	defer unix.Close(fd)

	if err := r.Connect(fd, addr); err != nil {
		return false, errors.Wrap(err, "connect")
	}
	if _, err := r.Write(fd, payload); err != nil {
		return false, errors.Wrap(err, "write")
	}

	reply := make([]byte, 0, len(payload))
	buf := make([]byte, len(payload))
	for len(reply) < len(payload) {
		n, err := r.Read(fd, buf[:len(payload)-len(reply)])
		if err != nil {
			return false, errors.Wrap(err, "read")
		}
		if n == 0 {
			break
		}
		reply = append(reply, buf[:n]...)
	}
	return bytes.Equal(reply, payload), nil
}
