// Command moderate はコメントのモデレーションを行う管理用CLI。
//
//	moderate stats | list [status] | approve <id> | reject <id> | delete <id>
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hitoshi/blogpulse/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
