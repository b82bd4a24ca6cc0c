package main

import (
	"github.com/turtacn/certgate/cmd/cli"
)

// main is the entry point for the certgate binary.
// It delegates all execution to the Execute function provided by the cli package.
// main 是 certgate 的入口点，所有执行委托给 cli 包的 Execute 函数。
func main() {
	cli.Execute()
}
