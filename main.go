package main

import "github.com/inference-sim/shard-planner/cmd"

func main() {
	cmd.Execute()
}
