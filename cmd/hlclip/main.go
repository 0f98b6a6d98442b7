package main

import "github.com/forPelevin/hlclip/internal/cli"

func main() {
	cli.Main()
}
