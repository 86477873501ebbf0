package main

import (
	"github.com/assetnote/n1qlback/cmd/n1qlback/cmd"
)

func main() {
	cmd.Execute()
}
