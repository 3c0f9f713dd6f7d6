// Command smoke exercises register, login, refresh and me against a running server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Moadams/ProjectTracker/internal/auth"
)

func main() {
	base := os.Getenv("PROJECTTRACKER_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := &http.Client{Timeout: 5 * time.Second}

	email := fmt.Sprintf("smoke-%s@example.com", uuid.NewString()[:8])
	creds := map[string]string{"email": email, "password": "smoke-pass-1"}

	var reg auth.Registration
	if err := call(ctx, client, http.MethodPost, base+"/auth/register", "", creds, http.StatusCreated, &reg); err != nil {
		log.Fatalf("register: %v", err)
	}
	if reg.Role != auth.RoleDeveloper {
		log.Fatalf("unexpected role %s", reg.Role)
	}

	var pair auth.TokenPair
	if err := call(ctx, client, http.MethodPost, base+"/auth/login", "", creds, http.StatusOK, &pair); err != nil {
		log.Fatalf("login: %v", err)
	}

	var refreshed auth.TokenPair
	body := map[string]string{"refreshToken": pair.RefreshToken}
	if err := call(ctx, client, http.MethodPost, base+"/auth/refresh", "", body, http.StatusOK, &refreshed); err != nil {
		log.Fatalf("refresh: %v", err)
	}

	var me struct {
		Email string `json:"email"`
	}
	if err := call(ctx, client, http.MethodGet, base+"/auth/users/me", refreshed.AccessToken, nil, http.StatusOK, &me); err != nil {
		log.Fatalf("me: %v", err)
	}
	if me.Email != email {
		log.Fatalf("me returned %q, want %q", me.Email, email)
	}

	fmt.Printf("✅ auth smoke test passed: principal=%s role=%s\n", reg.PrincipalID, pair.Role)
}

func call(ctx context.Context, client *http.Client, method, url, token string, in any, want int, out any) error {
	var buf bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return fmt.Errorf("status %d, want %d", resp.StatusCode, want)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
