package main

import "github.com/vscltools/faceitfinder/cmd"

func main() {
	cmd.Execute()
}
