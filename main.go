package main

import "github.com/agentic-research/skelmerge/cmd"

func main() {
	cmd.Execute()
}
