package main

import "github.com/tracemetals/icpbatch/cmd"

func main() {
	cmd.Execute()
}
