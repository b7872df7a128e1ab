package main

import "github.com/mcoot/arena-auth/internal/cli"

func main() {
	cli.Execute()
}
