package main

import "github.com/ValentinKolb/kvmig/cmd"

func main() {
	cmd.Execute()
}
