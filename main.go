package main

import "github.com/kozaktomas/iris-batch/cmd"

func main() {
	cmd.Execute()
}
