package main

import "github.com/MrEthical07/goSession/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
