package main

import "github.com/vietddude/queryplane/internal/cli"

func main() {
	cli.Execute()
}
