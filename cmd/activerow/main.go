// Command activerow inserts, updates and reads table rows through the
// activerow engine.
package main

import "github.com/mesh-intelligence/activerow/internal/cli"

func main() {
	cli.Execute()
}
