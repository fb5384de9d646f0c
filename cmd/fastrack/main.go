// Command fastrack はファスティング・体重・食事記録のAPIサーバーとワーカーを起動する。
//
// 使い方:
//
//	fastrack [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/fastrack/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fastrack: %v\n", err)
		os.Exit(1)
	}
}
