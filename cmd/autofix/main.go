package main

import "github.com/animus-coder/autofix/internal/cli"

func main() {
	cli.Execute()
}
