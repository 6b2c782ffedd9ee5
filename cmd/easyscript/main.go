package main

import (
	"github.com/treeforest/easyscript"
)

func main() {
	easyscript.Main()
}
