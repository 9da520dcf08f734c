// verimail is a small client for the verimail API, handy for smoke tests
// and local development.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	Token     string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	u := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, u, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	c := &client{
		BaseURL:   envOr("VERIMAIL_URL", "http://localhost:8080"),
		Token:     envOr("VERIMAIL_TOKEN", ""),
		OutFormat: envOr("VERIMAIL_OUT", "text"),
		HTTP:      &http.Client{Timeout: 30 * time.Second},
	}

	root := &cobra.Command{
		Use:   "verimail",
		Short: "Client for the verimail API",
	}
	root.PersistentFlags().StringVar(&c.BaseURL, "url", c.BaseURL, "API base URL (env VERIMAIL_URL)")
	root.PersistentFlags().StringVar(&c.Token, "token", c.Token, "bearer token (env VERIMAIL_TOKEN)")
	root.PersistentFlags().StringVar(&c.OutFormat, "out", c.OutFormat, "output format: text|json (env VERIMAIL_OUT)")

	root.AddCommand(
		healthCmd(c),
		registerCmd(c),
		verifyStartCmd(c),
		verifyConfirmCmd(c),
		meCmd(c),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func healthCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check /healthz and /readyz",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range []string{"/healthz", "/readyz"} {
				status, body, err := c.do(http.MethodGet, p, nil)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %d %s\n", p, status, strings.TrimSpace(string(body)))
			}
			return nil
		},
	}
}

func registerCmd(c *client) *cobra.Command {
	var email, pass string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]string{"email": email, "password": pass})
			status, out, err := c.do(http.MethodPost, "/v1/auth/register", body)
			if err != nil {
				return err
			}
			c.print(status, out)
			if status >= 400 {
				return fmt.Errorf("register failed with status %d", status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&pass, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func verifyStartCmd(c *client) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "verify-start",
		Short: "Request a (re)send of the verification email",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]string{"email": email})
			status, out, err := c.do(http.MethodPost, "/v1/auth/verify-email/start", body)
			if err != nil {
				return err
			}
			c.print(status, out)
			if status >= 400 {
				return fmt.Errorf("verify-start failed with status %d", status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func verifyConfirmCmd(c *client) *cobra.Command {
	var tok string
	cmd := &cobra.Command{
		Use:   "verify-confirm",
		Short: "Consume a verification token",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, out, err := c.do(http.MethodGet, "/v1/auth/verify-email?token="+url.QueryEscape(tok), nil)
			if err != nil {
				return err
			}
			c.print(status, out)
			if status >= 400 {
				return fmt.Errorf("verify-confirm failed with status %d", status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tok, "token", "", "verification token from the email link")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func meCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the authenticated account (requires --token)",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, out, err := c.do(http.MethodGet, "/v1/auth/me", nil)
			if err != nil {
				return err
			}
			c.print(status, out)
			if status >= 400 {
				return fmt.Errorf("me failed with status %d", status)
			}
			return nil
		},
	}
}
