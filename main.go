package main

import "github.com/mselser95/polymarket-lens/cmd"

func main() {
	cmd.Execute()
}
