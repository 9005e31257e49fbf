// Command cli bootstraps an administrator account against a running server:
// it prompts for the account details (password without echo) and registers
// the account with the admin role through the public API.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/term"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func main() {
	baseURL := flag.String("server", "http://localhost:8080/api", "server API base URL")
	flag.Parse()

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Enter administrator name")
	name, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	fmt.Println("Enter email")
	email, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	fmt.Println("Enter password")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	req := registerRequest{
		Name:     strings.TrimSpace(name),
		Email:    strings.TrimSpace(email),
		Password: string(password),
		Role:     "admin",
	}

	body, err := json.Marshal(req)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	resp, err := http.Post(strings.TrimRight(*baseURL, "/")+"/register", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		fmt.Printf("registration failed: %s\n", strings.TrimSpace(string(msg)))
		os.Exit(1)
	}

	fmt.Println("Success!")
}
