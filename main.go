package main

import "github.com/TFMV/pubmap/cmd"

func main() {
	cmd.Execute()
}
