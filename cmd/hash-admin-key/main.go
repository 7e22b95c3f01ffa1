package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// Generates the bcrypt hash stored in ADMIN_API_KEY_HASH.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <admin-api-key>\n", os.Args[0])
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[1]), 10)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(hash))
}
