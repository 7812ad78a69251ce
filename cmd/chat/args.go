/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"

	"go.osspkg.com/errors"

	"go.osspkg.com/chatrelay/address"
)

const Version = "1.0.0"

type Mode int

const (
	ModeNone Mode = iota
	ModeServer
	ModeClient
	ModeHelp
	ModeVersion
)

type Args struct {
	Mode    Mode
	Address string
	Threads int
	Event   bool
	Config  string
}

var (
	errRole      = errors.New("There may only be one occurence of either -s, --server or -c, --client")
	errModel     = errors.New("There may only be one occurence of either -t, --thread or -e, --event")
	errNoRole    = errors.New("Either -c, --client or -s, --server have to be used.")
	errClientOpt = errors.New("The client cannot be start with options -t, --thread and -e, --event.")
	errThreads   = errors.New("The multithreaded server is not supported, use -e, --event.")
	errPort      = errors.New("Argument after -s or --server is not a port in range 1 to 65535.")
	errIPPort    = errors.New("Argument after -c or --client is not ip:port, e.g. '127.0.0.1:8080'.")
	errThreadNum = errors.New("Argument after -t or --thread is not a positive integer.")
)

func parseArgs(argv []string) (Args, error) {
	var (
		a            Args
		roles, model int
		// first callback error, the flag package only keeps its text
		argErr error
	)
	fail := func(err error) error {
		if argErr == nil {
			argErr = err
		}
		return err
	}

	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	server := func(v string) error {
		roles++
		if roles > 1 {
			return fail(errRole)
		}
		addr, err := address.ServerAddress(v)
		if err != nil {
			return fail(errPort)
		}
		a.Mode, a.Address = ModeServer, addr
		return nil
	}
	client := func(v string) error {
		roles++
		if roles > 1 {
			return fail(errRole)
		}
		addr, err := address.ParseIPv4Port(v)
		if err != nil {
			return fail(errIPPort)
		}
		a.Mode, a.Address = ModeClient, addr
		return nil
	}
	thread := func(v string) error {
		model++
		if model > 1 {
			return fail(errModel)
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fail(errThreadNum)
		}
		a.Threads = n
		return nil
	}
	event := func(string) error {
		model++
		if model > 1 {
			return fail(errModel)
		}
		a.Event = true
		return nil
	}

	var help, version bool
	for _, name := range []string{"s", "server"} {
		fs.Func(name, "chat server is started, ARGUMENT is the listening port", server)
	}
	for _, name := range []string{"c", "client"} {
		fs.Func(name, "chat client is started, ARGUMENT is ip:port of the server (IPv4)", client)
	}
	for _, name := range []string{"t", "thread"} {
		fs.Func(name, "use multithreading, ARGUMENT is the number of threads", thread)
	}
	for _, name := range []string{"e", "event"} {
		fs.BoolFunc(name, "use event loop (default when omitted)", event)
	}
	for _, name := range []string{"h", "help"} {
		fs.BoolVar(&help, name, false, "print this help")
	}
	for _, name := range []string{"v", "version"} {
		fs.BoolVar(&version, name, false, "print the program version")
	}
	fs.StringVar(&a.Config, "config", "", "path to a yaml config file")

	if err := fs.Parse(argv); err != nil {
		if argErr != nil {
			return a, argErr
		}
		return a, fmt.Errorf("Unsupported argument used: %s", err.Error())
	}
	if fs.NArg() > 0 {
		return a, fmt.Errorf("Unsupported argument used: %s", fs.Arg(0))
	}

	switch {
	case help:
		a.Mode = ModeHelp
		return a, nil
	case version:
		a.Mode = ModeVersion
		return a, nil
	case a.Mode == ModeNone:
		return a, errNoRole
	case a.Mode == ModeClient && model > 0:
		return a, errClientOpt
	case a.Threads > 0:
		return a, errThreads
	}
	return a, nil
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Generic Chat Program - v%s\n", Version) //nolint: errcheck
}

func printHelp(w io.Writer) {
	printVersion(w)
	fmt.Fprint(w, helpText) //nolint: errcheck
}

func printArgError(w io.Writer, err error) {
	printHelp(w)
	fmt.Fprintf(w, "------\nERROR: %s\n------\n", err.Error()) //nolint: errcheck
}

const helpText = `This program starts either a chat client or server, depending
on the supplied arguments.

The following options are supported:
	-s, --server 	chat server is started, waiting for connections
			ARGUMENT needs to be the port the server is listening on

	-c, --client 	chat client is started, connects to chat server
			ARGUMENT needs to be ip:port of the chat server (IPv4)

	--config 	yaml file with relay and log settings

If -s or --server are used the following options are also available:
	-t, --thread 	use multithreading (not supported)
			ARGUMENT needs to be the number of threads to start [1-n]

	-e, --event 	use event loop (default when omitted)

Example calls:
	chat -s 8080
	chat -c 127.0.0.1:8080
	chat -s 8080 --config chat.yaml

`
