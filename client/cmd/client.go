/*
Copyright © 2024 Nokia
*/
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/sdcio/shell-server/pkg/server"
)

type apiError struct {
	code int
	rsp  server.ErrorResponse
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (%s, status %d)", e.rsp.Error, e.rsp.Type, e.code)
}

type client struct {
	base string
	hc   *http.Client
}

func newClient() *client {
	return &client{
		base: strings.TrimSuffix(addr, "/"),
		hc:   &http.Client{Timeout: timeout},
	}
}

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	rsp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()
	if rsp.StatusCode >= http.StatusBadRequest {
		e := &apiError{code: rsp.StatusCode}
		if err := json.NewDecoder(rsp.Body).Decode(&e.rsp); err != nil {
			return fmt.Errorf("%s %s: status %d", method, path, rsp.StatusCode)
		}
		return e
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(rsp.Body).Decode(out)
}

// readJSON decodes a JSON file into v.
func readJSON(file string, v any) error {
	file, err := homedir.Expand(file)
	if err != nil {
		return err
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
