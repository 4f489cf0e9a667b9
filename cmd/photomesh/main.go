// Command photomesh runs the face-capture camera view and the mesh viewer.
package main

func main() {
	Execute()
}
