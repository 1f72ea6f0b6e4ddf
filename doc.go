/*
Package invhaar evaluates boosted Haar feature rejection cascades, like the
OpenCV face detection cascades, and solves the inverse problem: it builds a
mixed-integer linear program whose solutions are pixel grids the cascade
accepts, and finds the one with the lowest total intensity.

The package provides a command line interface which takes a cascade file and
writes the solved image to out.png:

	$ invhaar testdata/square.xml

The size of the model grows with the window and the number of weak
classifiers, and the built-in branch and bound solver is only practical for
small cascades. A full 24x24 face cascade with thousands of classifiers is
well out of its reach.

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"context"
		"log"

		"github.com/esimov/invhaar"
	)

	func main() {
		cascade, err := invhaar.LoadFile("testdata/square.xml")
		if err != nil {
			log.Fatal(err)
		}
		cm, err := invhaar.BuildModel(context.Background(), cascade, invhaar.WithEpsilon(1e-6))
		if err != nil {
			log.Fatal(err)
		}
		cfg := invhaar.EmptyConfig()
		grid, err := invhaar.NewInverter(cfg.Solver(), cfg).SolveMinIntensity(context.Background(), cm)
		if err != nil {
			log.Fatal(err)
		}
		code, _ := invhaar.Detect(cascade, grid) // always 1
		log.Println(code)
	}
*/
package invhaar
