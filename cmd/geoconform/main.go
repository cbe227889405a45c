package main

import "github.com/tingold/geoconform/cmd/geoconform/cmd"

func main() {
	cmd.Execute()
}
