package main

import "drawdownwatch/internal/cli"

func main() {
	cli.Execute()
}
