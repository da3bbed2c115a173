// seed-admin prints the bcrypt hash for the operator account so it can be
// exported as ADMIN_PASSWORD_HASH before starting the server.
//
// Usage:
//   go run ./cmd/seed-admin -password 'S3cret!'
package main

import (
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/stockledger_backend/utils"
)

func main() {
	password := flag.String("password", "", "Operator password to hash")
	flag.Parse()

	if *password == "" {
		fmt.Fprintln(os.Stderr, "-password is required")
		os.Exit(1)
	}
	if len(*password) < 8 {
		fmt.Fprintln(os.Stderr, "password must be at least 8 characters")
		os.Exit(1)
	}

	hashed, err := utils.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ADMIN_PASSWORD_HASH=%s\n", string(hashed))
}
