// Package graph holds the graph-side collaborators of operator dispatch:
// operator descriptions, tagged attributes, variable scopes and the program
// loader that produces them.
//
// Basic usage:
//
//	prog, err := graph.LoadFile("mobilenet.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	scope, err := prog.NewScope()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	descs := prog.OpDescs(scope)
package graph
