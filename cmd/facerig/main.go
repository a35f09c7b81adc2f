package main

import "github.com/normanking/facerig/internal/cli"

func main() {
	cli.Main()
}
