// aelcli is the remote shell for aeld.
//
// It connects to the aeld gRPC API and provides the same interactive shell
// as the daemon console. With arguments it runs them as one command and
// exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/psaab/aelc/pkg/cli"
	"github.com/psaab/aelc/pkg/grpcapi"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:50051", "aeld gRPC address")
	flag.Parse()

	client, err := grpcapi.Dial(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aelcli: connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	// Verify connectivity
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	st, err := client.Status(ctx, &grpcapi.StatusRequest{})
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "aelcli: cannot reach aeld at %s: %v\n", *addr, err)
		os.Exit(1)
	}

	shell := cli.New(client, os.Stdout)
	if flag.NArg() > 0 {
		if err := shell.Execute(strings.Join(flag.Args(), " ")); err != nil {
			fmt.Fprintf(os.Stderr, "aelcli: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("aelcli: connected to aeld (uptime: %s)\n", st.Uptime)
	if err := shell.Run("/tmp/aelcli_history"); err != nil {
		fmt.Fprintf(os.Stderr, "aelcli: %v\n", err)
		os.Exit(1)
	}
}
