package main

import "github.com/mmynk/splitwiser-client/internal/cli"

func main() {
	cli.Execute()
}
