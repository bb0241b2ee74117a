package main

import "github.com/mailroom/mailroom/cli"

func main() {
	cli.Execute()
}
