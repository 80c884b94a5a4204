package main

import "github.com/ValentinKolb/vsdb/cmd"

func main() {
	cmd.Execute()
}
