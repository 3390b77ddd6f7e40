package main

import "github.com/kongfanmiao/hrms/cmd/hrms/cmd"

func main() {
	cmd.Execute()
}
