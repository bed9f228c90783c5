package main

import "github.com/jmehdipour/stocksync/cmd"

func main() {
	cmd.Execute()
}
