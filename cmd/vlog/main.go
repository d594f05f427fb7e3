package main

import "github.com/Tiliavir/volunteer-log/cmd"

func main() {
	cmd.Execute()
}
