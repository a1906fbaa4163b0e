package main

import "autopilot/internal/cli"

func main() {
	cli.Execute()
}
