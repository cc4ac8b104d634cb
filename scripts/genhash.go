//go:build ignore

// One-off: go run scripts/genhash.go [password] [cost]
// Prints a bcrypt hash for seeding users by hand.
package main

import (
	"fmt"
	"os"
	"strconv"

	"taskflow/internal/auth"
)

func main() {
	password := "admin12345"
	if len(os.Args) > 1 {
		password = os.Args[1]
	}
	cost := 12
	if len(os.Args) > 2 {
		if c, err := strconv.Atoi(os.Args[2]); err == nil {
			cost = c
		}
	}
	h, err := auth.NewHasher(cost).Hash(password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Print(h)
}
