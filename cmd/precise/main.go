package main

import "vectorstack/internal/cli"

func main() {
	cli.Execute()
}
