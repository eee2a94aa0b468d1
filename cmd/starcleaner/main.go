package main

import "starcleaner/internal/cmd"

func main() {
	cmd.Execute()
}
