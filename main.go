package main

import "github.com/bz888/cognix/cmd"

func main() {
	cmd.Execute()
}
