package main

import "github.com/Sternrassler/canvas-api-client/internal/cli"

func main() {
	cli.Execute()
}
