package main

import "github.com/mossy-p/classroom-signaling/internal/cli"

func main() {
	cli.Execute()
}
