// Command smoke exercises a running peopledesk-api instance end to end:
// health, login, a leave request and its approval. The credentials must
// belong to a manager or admin. It exits non-zero on the first divergence,
// so it can gate a deploy.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("PD_SMOKE_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	email := os.Getenv("PD_SMOKE_EMAIL")
	password := os.Getenv("PD_SMOKE_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("PD_SMOKE_EMAIL and PD_SMOKE_PASSWORD are required")
	}

	c := &client{base: base, http: &http.Client{Timeout: 10 * time.Second}}

	if err := c.call(http.MethodGet, "/healthz", nil, nil); err != nil {
		log.Fatalf("healthz: %v", err)
	}

	var login struct {
		Token string `json:"token"`
	}
	err := c.call(http.MethodPost, "/v1/auth/login", map[string]string{
		"email": email, "password": password,
	}, &login)
	if err != nil {
		log.Fatalf("login as %s: %v", email, err)
	}
	c.token = login.Token

	day := time.Now().UTC().AddDate(0, 1, 0).Format("2006-01-02")
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	err = c.call(http.MethodPost, "/v1/leaves", map[string]string{
		"type": "casual", "start": day, "end": day, "reason": "deploy check",
	}, &created)
	if err != nil {
		log.Fatalf("submit leave: %v", err)
	}
	if created.Status != "pending" {
		log.Fatalf("fresh request is %q, want pending", created.Status)
	}

	if err := c.call(http.MethodPost, "/v1/leaves/"+created.ID+"/approve", nil, nil); err != nil {
		log.Fatalf("approve leave: %v", err)
	}

	var got struct {
		Status string `json:"status"`
	}
	if err := c.call(http.MethodGet, "/v1/leaves/"+created.ID, nil, &got); err != nil {
		log.Fatalf("read back leave: %v", err)
	}
	if got.Status != "approved" {
		log.Fatalf("request is %q after approval, want approved", got.Status)
	}

	fmt.Printf("✅ peopledesk smoke test passed: leave=%s\n", created.ID)
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) call(method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
