/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package relay_test

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"go.osspkg.com/casecheck"
	"go.osspkg.com/errors"
	"go.osspkg.com/ioutils/data"

	"go.osspkg.com/chatrelay/relay"
)

func dial(t *testing.T, addr string) (net.Conn, *bufio.Reader) {
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	casecheck.NoError(t, err)
	casecheck.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	t.Cleanup(func() { conn.Close() }) //nolint: errcheck
	return conn, bufio.NewReader(conn)
}

func readLine(t *testing.T, r *bufio.Reader) string {
	line, err := r.ReadString('\n')
	casecheck.NoError(t, err, line)
	return line
}

func testLoopback(t *testing.T, pollerName string) {
	transcript := data.NewBuffer(0)
	srv, err := relay.New(relay.Config{
		Address:        "127.0.0.1:0",
		PollTimeout:    20 * time.Millisecond,
		Poller:         pollerName,
		DisableConsole: true,
	}, relay.WithTranscript(transcript))
	casecheck.NoError(t, err)
	casecheck.NoError(t, srv.Open())

	addr := srv.Addr()
	casecheck.True(t, !strings.HasSuffix(addr, ":0"), addr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	c1, r1 := dial(t, addr)
	_, err = c1.Write([]byte("first\n"))
	casecheck.NoError(t, err)
	// give the loop time to register c1 before c2 arrives
	time.Sleep(100 * time.Millisecond)

	c2, r2 := dial(t, addr)
	joined := readLine(t, r1)
	casecheck.True(t, strings.HasSuffix(joined, "has entered the chat room.\n"), joined)

	_, err = c2.Write([]byte("hi\n"))
	casecheck.NoError(t, err)
	casecheck.Equal(t, "hi\n", readLine(t, r1))

	_, err = c1.Write([]byte("hello back\n"))
	casecheck.NoError(t, err)
	casecheck.Equal(t, "hello back\n", readLine(t, r2))

	casecheck.NoError(t, c2.Close())
	left := readLine(t, r1)
	casecheck.True(t, strings.HasSuffix(left, "has left the chat room.\n"), left)

	cancel()
	select {
	case err = <-done:
		casecheck.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("relay did not stop")
	}
	casecheck.True(t, strings.Contains(transcript.String(), " - hi\n"), transcript.String())

	_, err = c1.Read(make([]byte, 1))
	casecheck.True(t, err != nil)
}

func TestUnit_LoopbackPoll(t *testing.T) {
	testLoopback(t, "poll")
}

func TestUnit_LoopbackEpoll(t *testing.T) {
	testLoopback(t, "epoll")
}

func TestUnit_ServeTwice(t *testing.T) {
	srv, err := relay.New(relay.Config{Address: "127.0.0.1:0", DisableConsole: true, PollTimeout: 10 * time.Millisecond})
	casecheck.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	time.Sleep(50 * time.Millisecond)

	casecheck.True(t, errors.Is(srv.Serve(ctx), relay.ErrAlreadyRunning))
	cancel()
	casecheck.NoError(t, <-done)
}

func testServeAgain(t *testing.T, pollerName string) {
	srv, err := relay.New(relay.Config{
		Address:        "127.0.0.1:0",
		PollTimeout:    20 * time.Millisecond,
		Poller:         pollerName,
		DisableConsole: true,
	}, relay.WithTranscript(data.NewBuffer(0)))
	casecheck.NoError(t, err)

	stopped, stop := context.WithCancel(context.Background())
	stop()
	casecheck.NoError(t, srv.Serve(stopped))

	// the second run must get a fresh poller, the first one is closed
	casecheck.NoError(t, srv.Open())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	c1, r1 := dial(t, srv.Addr())
	_, err = c1.Write([]byte("ping\n"))
	casecheck.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	dial(t, srv.Addr())
	joined := readLine(t, r1)
	casecheck.True(t, strings.HasSuffix(joined, "has entered the chat room.\n"), joined)

	cancel()
	select {
	case err = <-done:
		casecheck.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("relay did not stop")
	}
}

func TestUnit_ServeAgainPoll(t *testing.T) {
	testServeAgain(t, "poll")
}

func TestUnit_ServeAgainEpoll(t *testing.T) {
	testServeAgain(t, "epoll")
}

func TestUnit_ConfigValidate(t *testing.T) {
	tests := []struct {
		conf    relay.Config
		wantErr bool
	}{
		{conf: relay.Config{}},
		{conf: relay.Config{Poller: "select"}, wantErr: true},
		{conf: relay.Config{MaxConnections: 2}, wantErr: true},
		{conf: relay.Config{MaxConnections: 2, DisableConsole: true}},
		{conf: relay.Config{MaxConnections: 1, DisableConsole: true}, wantErr: true},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("Case%d", i), func(t *testing.T) {
			tt.conf.Default()
			err := tt.conf.Validate()
			casecheck.Equal(t, tt.wantErr, err != nil, err)
		})
	}

	c := relay.Config{}
	c.Default()
	casecheck.Equal(t, relay.DefaultAddress, c.Address)
	casecheck.Equal(t, relay.DefaultQueueCapacity, c.QueueCapacity)
	casecheck.Equal(t, relay.DefaultMaxConnections, c.MaxConnections)
	casecheck.Equal(t, relay.DefaultPollTimeout, c.PollTimeout)
	casecheck.Equal(t, relay.DefaultSendRetries, c.SendRetries)

	c = relay.Config{SendRetries: -1}
	c.Default()
	casecheck.Equal(t, -1, c.SendRetries)
}
