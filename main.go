package main

import (
	"github.com/luma/cask/cmd"
)

func main() {
	cmd.Execute()
}
