package main

import "github.com/lyricgen/lyricgen/cmd"

func main() {
	cmd.Execute()
}
