package main

import "github.com/tanq16/droidup/cmd"

func main() {
	cmd.Execute()
}
