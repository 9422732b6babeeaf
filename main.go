package main

import "github.com/Selleo/mentingo-sub006/cmd"

func main() {
	cmd.Execute()
}
