package main

import "github.com/ppiankov/sceneguard/internal/cli"

func main() {
	cli.Execute()
}
