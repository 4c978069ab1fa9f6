package main

import "github.com/mkralik/photo-tagger/cmd"

func main() {
	cmd.Execute()
}
