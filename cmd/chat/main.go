/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package main

import (
	"fmt"
	"io"
	"os"

	"go.osspkg.com/logx"
	"go.osspkg.com/xc"

	"go.osspkg.com/chatrelay/client"
	"go.osspkg.com/chatrelay/relay"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(argv []string, in io.Reader, out io.Writer) int {
	args, err := parseArgs(argv)
	if err != nil {
		printArgError(out, err)
		return 1
	}

	switch args.Mode {
	case ModeHelp:
		printHelp(out)
		return 0
	case ModeVersion:
		printVersion(out)
		return 0
	}

	conf, err := loadConfig(args.Config)
	if err == nil {
		err = conf.Log.apply()
	}
	if err != nil {
		printArgError(out, err)
		return 1
	}

	ctx := xc.New()
	defer ctx.Close()

	switch args.Mode {
	case ModeClient:
		fmt.Fprintln(out, "Starting Chat Client") //nolint: errcheck
		cli, err := client.New(client.Config{Address: args.Address})
		if err == nil {
			err = cli.Run(ctx.Context(), in, out)
		}
		if err != nil {
			logx.Error("Chat client", "err", err, "addr", args.Address)
			return 1
		}

	default:
		fmt.Fprintln(out, "Starting Chat Server (event loop)") //nolint: errcheck
		conf.Relay.Address = args.Address
		srv, err := relay.New(conf.Relay, relay.WithTranscript(out))
		if err == nil {
			err = srv.Serve(ctx.Context())
		}
		if err != nil {
			logx.Error("Chat server", "err", err, "addr", args.Address)
			return 1
		}
	}
	return 0
}
