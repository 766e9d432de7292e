package main

import "UrbanPull/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
